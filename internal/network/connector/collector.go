package connector

import (
	"time"

	"github.com/cockroachdb/errors"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// ErrTimeout 表示在给定时间内没有收到新的文本。
var ErrTimeout = errors.New("connector: receive timeout")

// Collector 是将收到的文本缓存到通道中的 Handler 实现，
// 供需要同步逐行读取的调用方使用。
type Collector struct {
	lines  chan string
	closed chan struct{}
	cause  error
}

var _ Handler = (*Collector)(nil)

// NewCollector 创建一个最多缓存 size 行的 Collector。
// 缓存已满时接收协程阻塞，直至调用方取走数据。
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = 64
	}
	return &Collector{
		lines:  make(chan string, size),
		closed: make(chan struct{}),
	}
}

func (c *Collector) OnConnected(ClientConn) {}

func (c *Collector) OnMessage(_ ClientConn, line string) {
	c.lines <- line
}

func (c *Collector) OnClosed(_ ClientConn, err error) {
	c.cause = err
	close(c.closed)
}

func (c *Collector) OnError(ClientConn, network.Stage, error) {}

// Next 返回下一行文本。
//
// 连接已关闭且缓存为空时返回 merr.ErrServiceStopped；超时返回 ErrTimeout。
func (c *Collector) Next(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-c.lines:
		return line, nil
	default:
	}

	select {
	case line := <-c.lines:
		return line, nil
	case <-c.closed:
		// 关闭前投递的数据优先返回。
		select {
		case line := <-c.lines:
			return line, nil
		default:
		}
		return "", errors.Wrap(merr.ErrServiceStopped, "connection closed")
	case <-timer.C:
		return "", ErrTimeout
	}
}

// Closed 返回一个在连接关闭后被关闭的通道。
func (c *Collector) Closed() <-chan struct{} {
	return c.closed
}

// Cause 返回连接关闭的原因，仅在 Closed() 被关闭后有效。
func (c *Collector) Cause() error {
	<-c.closed
	return c.cause
}
