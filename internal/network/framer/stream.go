package framer

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// streamConn 是基于字节流（TCP 等）的 LineConn 实现。
type streamConn struct {
	conn        net.Conn
	reader      *bufio.Reader
	maxLineSize int
}

var _ LineConn = (*streamConn)(nil)

// NewStreamConn 将 net.Conn 包装为按行收发的 LineConn。
// maxLineSize <= 0 时使用 DefaultMaxLineSize。
func NewStreamConn(conn net.Conn, maxLineSize int) LineConn {
	return &streamConn{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		maxLineSize: effectiveMaxLineSize(maxLineSize),
	}
}

// ReadLine 实现 LineConn.ReadLine。
// 超过 maxLineSize 的行返回 ErrSessionLineTooLong，此后连接不应继续使用。
func (c *streamConn) ReadLine() (string, error) {
	var buf []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		// 预留 "\r\n" 两个字节。
		if len(buf) > c.maxLineSize+2 {
			return "", merr.WrapErrSessionLineTooLong(c.maxLineSize)
		}

		switch {
		case err == nil:
			return c.finish(buf)
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) > 0 {
				return c.finish(buf)
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

func (c *streamConn) finish(buf []byte) (string, error) {
	line := trimEOL(string(buf))
	if len(line) > c.maxLineSize {
		return "", merr.WrapErrSessionLineTooLong(c.maxLineSize)
	}
	return line, nil
}

func (c *streamConn) ReadRaw(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (c *streamConn) WriteLine(line string) error {
	return c.WriteRaw(line + "\n")
}

func (c *streamConn) WriteRaw(text string) error {
	_, err := io.WriteString(c.conn, text)
	return err
}

func (c *streamConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *streamConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *streamConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *streamConn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *streamConn) Close() error                       { return c.conn.Close() }
