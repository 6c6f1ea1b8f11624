package acceptor

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/util/conc"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// BaseAcceptor 是 Acceptor 接口的基础 TCP 实现。
//
// 设计目标：
//   - 对外只暴露 Acceptor 接口和 Handler 回调，不绑定具体业务逻辑；
//   - 内部负责：接受连接、包装为按行收发的 LineConn、驱动读取并回调 Handler；
//   - 每个连接在协程池中独占一个协程，保证同一 Session 上 Handler 串行执行。
type BaseAcceptor struct {
	log.Binder

	ln  net.Listener
	cfg Config

	closeOnce sync.Once
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 使用已有的 Listener 创建一个基础接入器。
//
// 参数：
//   - ln ：已创建好的 net.Listener（例如 TCP 监听器）；
//   - cfg：连接配置，零值字段使用默认值。
func NewBaseAcceptor(ln net.Listener, cfg Config) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, merr.WrapErrParameterMissing("listener")
	}
	a := &BaseAcceptor{
		ln:  ln,
		cfg: cfg.withDefaults(),
	}
	a.SetLogger(log.With(log.FieldComponent("acceptor"), zap.Stringer("addr", ln.Addr())))
	return a, nil
}

// NewTCPAcceptor 在给定地址上监听 TCP，并创建一个基础接入器。
//
// 参数：
//   - addr：监听地址，例如 "0.0.0.0:9000"；
//   - cfg ：连接配置。
//
// 绑定失败时返回 merr.ErrServiceListenFail。
func NewTCPAcceptor(addr string, cfg Config) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, merr.WrapErrParameterMissing("addr")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrServiceListenFail(addr, err)
	}
	return NewBaseAcceptor(ln, cfg)
}

// Addr 实现 Acceptor.Addr。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return merr.WrapErrParameterMissing("handler")
	}

	logger := a.Logger()

	// ctx 取消时关闭监听器，使阻塞中的 Accept 返回。
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.Close()
		case <-stop:
		}
	}()

	pool := newConnPool(a.cfg)
	defer pool.Release()

	var wg sync.WaitGroup
	defer wg.Wait()

	delay := newAcceptBackOff()
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			// 若上层已取消或监听器被关闭，则将错误视为正常退出。
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			// 临时性错误（如文件描述符耗尽）退避后重试。
			if isTemporary(err) {
				wait := delay.NextBackOff()
				logger.RatedWarn(1, "accept failed, retrying", zap.Duration("backoff", wait), zap.Error(err))
				h.OnError(nil, network.StageAccept, network.StageAccept.Wrap(err))
				select {
				case <-time.After(wait):
					continue
				case <-ctx.Done():
					return nil
				}
			}

			// 其他错误交由上层决定是否重试或重建接入器。
			return network.StageAccept.Wrap(err)
		}
		delay.Reset()

		lc := framer.NewStreamConn(conn, a.cfg.MaxLineSize)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			serveConn(ctx, a.cfg, lc, h)
		}); err != nil {
			wg.Done()
			_ = conn.Close()
			logger.RatedWarn(1, "connection rejected", log.FieldRemote(conn.RemoteAddr().String()), zap.Error(err))
			h.OnError(nil, network.StageAccept, network.StageAccept.Wrap(err))
		}
	}
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
	})
	return err
}

// newConnPool 创建承载连接协程的协程池。
// 不限连接数时池容量不限；否则池满时 Submit 立即失败。
func newConnPool(cfg Config) *conc.Pool {
	if cfg.MaxConnections <= 0 {
		return conc.NewPool(-1, conc.WithConcealPanic(true))
	}
	return conc.NewPool(cfg.MaxConnections,
		conc.WithNonBlocking(true),
		conc.WithConcealPanic(true),
	)
}

func newAcceptBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// isTemporary 判断 Accept 返回的错误是否可以通过稍后重试恢复。
func isTemporary(err error) bool {
	if framer.IsTimeout(err) {
		return true
	}
	return errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
