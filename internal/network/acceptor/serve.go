package acceptor

import (
	"context"
	"sync"
	"time"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/session"
)

// serveConn 处理单个连接的生命周期。
//
// 流程：
//  1. 调用 Handler.OnAccept 创建 Session 实例；
//  2. 通过读协程循环读取文本行，将结果投递到 per-session 队列；
//  3. 在当前协程中按顺序从队列中取出文本，并回调 Handler.OnMessage；
//  4. 对端断开、读失败或会话被关闭后，关闭会话并调用 Handler.OnSessionClosed。
func serveConn(ctx context.Context, cfg Config, conn framer.LineConn, h Handler) {
	sess, err := h.OnAccept(ctx, conn)
	if err != nil {
		_ = conn.Close()
		h.OnError(nil, network.StageAccept, network.StageAccept.Wrap(err))
		return
	}
	if sess == nil {
		_ = conn.Close()
		return
	}

	// per-session 队列：读协程负责投递，当前协程顺序消费。
	lines := make(chan string, cfg.InboundQueueSize)

	var (
		wg    sync.WaitGroup
		cause error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(lines)
		cause = readLoop(sess, cfg, conn, lines)
	}()

	// 顺序消费文本行，确保同一 Session 上的业务 Handler 串行执行。
	consume(sess, lines, h)

	// 关闭会话会同时关闭底层连接，使阻塞中的读协程退出。
	_ = sess.Close()
	wg.Wait()

	if cause != nil {
		h.OnError(sess, network.StageRecv, cause)
	}
	h.OnSessionClosed(sess, cause)
}

func consume(sess session.Session, lines <-chan string, h Handler) {
	done := sess.Context().Done()
	for {
		select {
		case <-done:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			stage := network.StageDispatch
			if sess.Phase() == session.PhaseUnregistered {
				stage = network.StageHandshake
			}
			if err := h.OnMessage(sess, line); err != nil {
				h.OnError(sess, stage, stage.Wrap(err))
			}
		}
	}
}

// readLoop 持续从连接中读取文本行，并写入 lines 通道。
//
// 返回值：
//   - 非 nil error 表示读取过程中发生的错误（包括超时与超长行）；
//   - nil 表示正常结束（例如对端关闭连接或会话已被关闭）。
func readLoop(sess session.Session, cfg Config, conn framer.LineConn, lines chan<- string) error {
	done := sess.Context().Done()
	for {
		if cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout)); err != nil {
				return network.StageRecv.Wrap(err)
			}
		}

		line, err := conn.ReadLine()
		if err != nil {
			// EOF/连接关闭，或会话已由本端关闭，视为正常断开。
			if framer.IsClosed(err) || sess.Context().Err() != nil {
				return nil
			}
			return network.StageRecv.Wrap(err)
		}

		select {
		case lines <- line:
		case <-done:
			return nil
		}
	}
}
