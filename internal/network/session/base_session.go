package session

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/pkg/metrics"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const (
	// DefaultSendQueueSize 为每个会话发送队列的默认容量。
	DefaultSendQueueSize = 256
	// DefaultWriteTimeout 为单次写出的默认超时时间。
	DefaultWriteTimeout = 10 * time.Second
)

// Config 描述会话层面的配置。
//
// 说明：
//   - SendQueueSize 控制每个会话发送队列的容量，队列满时新的行会被丢弃；
//   - WriteTimeout 控制单次写出的超时时间，同时也是关闭时冲刷剩余数据的总时限；
//   - OnSendError 在写出失败时于发送协程中被调用，不能在其中调用 Close。
type Config struct {
	SendQueueSize int
	WriteTimeout  time.Duration
	OnSendError   func(err error)
}

func (cfg Config) withDefaults() Config {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultSendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return cfg
}

// BaseSession 提供了 Session 接口的基础实现。
//
// 设计目标：
//   - 封装最小但完整的会话能力：ID、昵称、阶段、Context、地址信息、发送与关闭；
//   - 业务在自定义会话中嵌入 *BaseSession，并在其上实现注册与终止流程。
type BaseSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn framer.LineConn
	cfg  Config

	remoteAddr net.Addr
	localAddr  net.Addr

	name  atomic.String
	phase atomic.Int32

	// sendQueue 为待发送文本的队列。
	//   - Send/Prompt 仅负责投递，不会阻塞调用方；
	//   - 独立的发送协程按顺序取出并写入底层连接；
	//   - 队列永远不会被关闭，关闭后的投递由 ctx 拦截。
	sendQueue chan outbound
	// done 在发送协程退出并关闭底层连接后被关闭。
	done chan struct{}

	closeOnce sync.Once
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

// outbound 表示一条待发送的文本。
type outbound struct {
	text string
	raw  bool
}

// NewBaseSession 创建一个基于 LineConn 的基础 Session 实例，并启动发送协程。
//
// 参数：
//   - parent：会话所属的上层上下文；若为 nil，则使用 context.Background()；
//   - id    ：会话 ID，由调用侧保证唯一；
//   - conn  ：按行收发的底层连接；
//   - cfg   ：会话配置，零值字段使用默认值。
func NewBaseSession(parent context.Context, id uint64, conn framer.LineConn, cfg Config) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	cfg = cfg.withDefaults()

	s := &BaseSession{
		id:         id,
		ctx:        ctx,
		cancel:     cancel,
		conn:       conn,
		cfg:        cfg,
		remoteAddr: conn.RemoteAddr(),
		localAddr:  conn.LocalAddr(),
		sendQueue:  make(chan outbound, cfg.SendQueueSize),
		done:       make(chan struct{}),
	}
	s.phase.Store(int32(PhaseUnregistered))

	go s.sendLoop()

	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Name 实现 Session.Name。
func (s *BaseSession) Name() string {
	return s.name.Load()
}

// Phase 实现 Session.Phase。
func (s *BaseSession) Phase() Phase {
	return Phase(s.phase.Load())
}

// Context 实现 Session.Context。
func (s *BaseSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 实现 Session.LocalAddr。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

// Conn 返回底层连接，仅供会话所属的读协程使用。
func (s *BaseSession) Conn() framer.LineConn {
	return s.conn
}

// Send 实现 Session.Send。
func (s *BaseSession) Send(line string) error {
	return s.enqueue(outbound{text: line})
}

// Prompt 实现 Session.Prompt。
func (s *BaseSession) Prompt(text string) error {
	return s.enqueue(outbound{text: text, raw: true})
}

func (s *BaseSession) enqueue(msg outbound) error {
	if s.ctx.Err() != nil {
		return merr.WrapErrSessionClosed(s.id)
	}
	select {
	case s.sendQueue <- msg:
		return nil
	default:
		return merr.WrapErrSessionSendFull(s.id, cap(s.sendQueue))
	}
}

// MarkRegistered 将会话从 Unregistered 切换为 Registered 并记录昵称。
// 当前阶段不是 Unregistered 时返回 false，昵称不变。
func (s *BaseSession) MarkRegistered(name string) bool {
	if !s.phase.CompareAndSwap(int32(PhaseUnregistered), int32(PhaseRegistered)) {
		return false
	}
	s.name.Store(name)
	return true
}

// MarkTerminated 将会话切换为 Terminated，并返回切换前的阶段。
// 只有第一次调用会返回非 Terminated 的阶段。
func (s *BaseSession) MarkTerminated() Phase {
	return Phase(s.phase.Swap(int32(PhaseTerminated)))
}

// Close 实现 Session.Close。
func (s *BaseSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
	return nil
}

// Done 返回一个在底层连接关闭后被关闭的通道。
func (s *BaseSession) Done() <-chan struct{} {
	return s.done
}

// sendLoop 为每个会话启动的专职发送协程。
//
// 行为：
//   - 从 sendQueue 中按顺序取出文本并写入连接，每次写入都带有写超时；
//   - 写出失败时回调 OnSendError 并结束会话；
//   - ctx 取消后在 WriteTimeout 内尽力写出队列中剩余的数据，然后关闭连接。
func (s *BaseSession) sendLoop() {
	defer close(s.done)
	defer func() {
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case msg := <-s.sendQueue:
			if err := s.write(msg, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.reportSendError(err)
				s.cancel()
				return
			}
		}
	}
}

// drain 写出关闭时队列中尚未发送的数据。
func (s *BaseSession) drain() {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	for {
		select {
		case msg := <-s.sendQueue:
			if err := s.write(msg, deadline); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *BaseSession) write(msg outbound, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return merr.WrapErrIoFailed("set write deadline", err)
	}

	start := time.Now()
	var err error
	if msg.raw {
		err = s.conn.WriteRaw(msg.text)
	} else {
		err = s.conn.WriteLine(msg.text)
	}
	metrics.WriteLatency.Observe(float64(time.Since(start).Microseconds()) / 1000)

	if err != nil {
		if framer.IsTimeout(err) {
			return merr.ErrSessionWriteTimeout
		}
		if framer.IsClosed(err) {
			return err
		}
		return merr.WrapErrIoFailed("write line", err)
	}
	return nil
}

func (s *BaseSession) reportSendError(err error) {
	if s.cfg.OnSendError != nil && !framer.IsClosed(err) {
		s.cfg.OnSendError(err)
	}
}
