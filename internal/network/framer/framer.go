package framer

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultMaxLineSize 为单行允许的默认最大字节数（不含行尾）。
const DefaultMaxLineSize = 64 * 1024

// LineConn 抽象了按行收发文本的连接。
//
// 约定：
//   - ReadLine 返回的行不包含行尾的 "\n" 与 "\r"；
//   - 对端关闭连接时 ReadLine 返回 io.EOF，关闭前最后一段不带换行的数据仍作为一行返回；
//   - 同一时刻只允许一个协程读、一个协程写。
type LineConn interface {
	// ReadLine 阻塞读取下一行。
	ReadLine() (string, error)

	// ReadRaw 读取一段不以换行结尾的文本（例如昵称提示语）。
	// 字节流连接读取恰好 n 个字节；WebSocket 连接读取下一条消息，忽略 n。
	ReadRaw(n int) (string, error)

	// WriteLine 写入一行，自动追加 "\n"。
	WriteLine(line string) error

	// WriteRaw 原样写入文本，不追加换行（用于提示语）。
	WriteRaw(text string) error

	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error

	RemoteAddr() net.Addr
	LocalAddr() net.Addr

	Close() error
}

// IsClosed 判断 err 是否表示连接已被对端或本端正常关闭。
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// IsTimeout 判断 err 是否为读写超时。
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// trimEOL 去掉行尾的 "\n" 以及紧邻其前的一个 "\r"。
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func effectiveMaxLineSize(size int) int {
	if size <= 0 {
		return DefaultMaxLineSize
	}
	return size
}
