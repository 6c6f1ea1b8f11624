package connector

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// Config 描述客户端连接的基础配置。
type Config struct {
	// ReadTimeout/WriteTimeout 控制单次读写的超时时间（为 0 表示不设置 deadline）。
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxLineSize 为单行的最大字节数，<= 0 时使用 framer.DefaultMaxLineSize。
	MaxLineSize int

	// Prompt 为服务端在连接建立后发送的、不以换行结尾的提示文本。
	// 非空时，接收协程先按其长度读取一次原始文本，再开始按行读取。
	Prompt string

	// Header 为 WebSocket 握手时附带的 HTTP 头，仅 WebSocket 使用。
	Header http.Header
}

// ClientConn 抽象了客户端侧的一条按行收发的连接。
//
// 注意：客户端连接不包含会话 ID 概念。
type ClientConn interface {
	Context() context.Context
	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	// Send 同步写出一行文本，可被多个协程并发调用。
	Send(line string) error

	Close() error
}

// Handler 描述客户端在各阶段的回调能力。
//
// 所有回调都在连接的接收协程中执行（OnConnected 在 Dial 的调用协程中执行）。
type Handler interface {
	OnConnected(conn ClientConn)
	OnMessage(conn ClientConn, line string)
	OnClosed(conn ClientConn, err error)
	OnError(conn ClientConn, stage network.Stage, err error)
}

// Connector 抽象了客户端的拨号器。
type Connector interface {
	// Dial 建立连接并启动接收协程。
	//
	// target 对 TCP 而言为 "host:port"，对 WebSocket 而言为完整 URL。
	Dial(ctx context.Context, target string, h Handler) (ClientConn, error)
}

// tcpConnector 是基于 TCP 的 Connector 实现。
type tcpConnector struct {
	cfg Config
}

// NewTCPConnector 创建一个基于 TCP 的 Connector。
func NewTCPConnector(cfg Config) Connector {
	return &tcpConnector{cfg: cfg}
}

func (c *tcpConnector) Dial(ctx context.Context, target string, h Handler) (ClientConn, error) {
	if h == nil {
		return nil, merr.WrapErrParameterMissing("handler")
	}
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}
	return start(ctx, framer.NewStreamConn(conn, c.cfg.MaxLineSize), c.cfg, h), nil
}

// wsConnector 是基于 gorilla/websocket 的 Connector 实现。
type wsConnector struct {
	cfg Config
}

// NewWSConnector 创建一个基于 WebSocket 的 Connector。
func NewWSConnector(cfg Config) Connector {
	return &wsConnector{cfg: cfg}
}

func (c *wsConnector) Dial(ctx context.Context, target string, h Handler) (ClientConn, error) {
	if h == nil {
		return nil, merr.WrapErrParameterMissing("handler")
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, c.cfg.Header)
	if err != nil {
		return nil, err
	}
	return start(ctx, framer.NewWebSocketConn(conn, c.cfg.MaxLineSize), c.cfg, h), nil
}

// lineClientConn 是 ClientConn 的默认实现。
type lineClientConn struct {
	conn framer.LineConn

	ctx    context.Context
	cancel context.CancelFunc

	cfg Config
	h   Handler

	// writeMu 串行化写出，WebSocket 不允许并发写。
	writeMu sync.Mutex

	closeOnce sync.Once
}

func start(ctx context.Context, conn framer.LineConn, cfg Config, h Handler) *lineClientConn {
	connCtx, cancel := context.WithCancel(ctx)
	c := &lineClientConn{
		conn:   conn,
		ctx:    connCtx,
		cancel: cancel,
		cfg:    cfg,
		h:      h,
	}
	h.OnConnected(c)

	go c.recvLoop()
	go func() {
		<-c.ctx.Done()
		_ = c.conn.Close()
	}()

	return c
}

func (c *lineClientConn) Context() context.Context { return c.ctx }
func (c *lineClientConn) RemoteAddr() net.Addr     { return c.conn.RemoteAddr() }
func (c *lineClientConn) LocalAddr() net.Addr      { return c.conn.LocalAddr() }

// Close 关闭连接，接收协程随后退出并回调 OnClosed。
func (c *lineClientConn) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}

func (c *lineClientConn) Send(line string) error {
	if c.ctx.Err() != nil {
		return network.StageSend.Wrap(errors.Wrap(merr.ErrServiceStopped, "connection closed"))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return network.StageSend.Wrap(err)
		}
	}
	if err := c.conn.WriteLine(line); err != nil {
		c.h.OnError(c, network.StageSend, err)
		_ = c.Close()
		return network.StageSend.Wrap(err)
	}
	return nil
}

// recvLoop 持续读取文本行并回调 OnMessage。
func (c *lineClientConn) recvLoop() {
	var cause error
	defer func() {
		_ = c.Close()
		c.h.OnClosed(c, cause)
	}()

	if c.cfg.Prompt != "" {
		c.setReadDeadline()
		prompt, err := c.conn.ReadRaw(len(c.cfg.Prompt))
		if err != nil {
			cause = c.recvError(err)
			return
		}
		c.h.OnMessage(c, prompt)
	}

	for {
		c.setReadDeadline()
		line, err := c.conn.ReadLine()
		if err != nil {
			cause = c.recvError(err)
			return
		}
		c.h.OnMessage(c, line)
	}
}

func (c *lineClientConn) setReadDeadline() {
	if c.cfg.ReadTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

// recvError 将读错误转换为关闭原因，对端正常关闭或本端主动关闭时返回 nil。
func (c *lineClientConn) recvError(err error) error {
	if framer.IsClosed(err) || c.ctx.Err() != nil {
		return nil
	}
	c.h.OnError(c, network.StageRecv, err)
	return network.StageRecv.Wrap(err)
}
