package framer

import (
	"io"
	"net"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const closeGracePeriod = time.Second

// wsConn 是基于 WebSocket 的 LineConn 实现。
//
// 约定：
//   - 每次写入对应一条文本消息；
//   - 一条入站消息可以包含多行，按 "\n" 拆分后逐行返回；
//   - 单条入站消息的大小受 maxLineSize 限制。
type wsConn struct {
	conn        *websocket.Conn
	pending     []string
	maxLineSize int
}

var _ LineConn = (*wsConn)(nil)

// NewWebSocketConn 将 WebSocket 连接包装为按行收发的 LineConn。
// maxLineSize <= 0 时使用 DefaultMaxLineSize。
func NewWebSocketConn(conn *websocket.Conn, maxLineSize int) LineConn {
	maxLineSize = effectiveMaxLineSize(maxLineSize)
	// 预留 "\r\n" 两个字节。
	conn.SetReadLimit(int64(maxLineSize) + 2)
	return &wsConn{
		conn:        conn,
		maxLineSize: maxLineSize,
	}
}

// ReadLine 实现 LineConn.ReadLine。
// 对端发送关闭帧时返回 io.EOF。
func (c *wsConn) ReadLine() (string, error) {
	if len(c.pending) > 0 {
		line := c.pending[0]
		c.pending = c.pending[1:]
		return line, nil
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if errors.Is(err, websocket.ErrReadLimit) {
			return "", merr.WrapErrSessionLineTooLong(c.maxLineSize)
		}
		if IsClosed(err) {
			return "", io.EOF
		}
		return "", err
	}

	text := strings.TrimSuffix(string(data), "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	c.pending = lines[1:]
	return lines[0], nil
}

func (c *wsConn) ReadRaw(int) (string, error) {
	if len(c.pending) > 0 {
		return c.ReadLine()
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if IsClosed(err) {
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

func (c *wsConn) WriteLine(line string) error {
	return c.WriteRaw(line + "\n")
}

func (c *wsConn) WriteRaw(text string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *wsConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *wsConn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }

// Close 尽力发送关闭帧后关闭底层连接。
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return c.conn.Close()
}
