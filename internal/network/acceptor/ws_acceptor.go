package acceptor

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const shutdownTimeout = 5 * time.Second

// WSAcceptor 是基于 gorilla/websocket 的 Acceptor 实现。
//
// 说明：
//   - 在 Config.Path 上处理 WebSocket 升级，其余路径返回 404；
//   - 升级成功后的连接与 TCP 连接共用同一套按行处理流程；
//   - 一条入站文本消息可以携带多行，每条出站行对应一条文本消息。
type WSAcceptor struct {
	log.Binder

	ln       net.Listener
	cfg      Config
	upgrader *websocket.Upgrader

	closeOnce sync.Once
}

var _ Acceptor = (*WSAcceptor)(nil)

// NewWSAcceptor 在给定地址上监听 HTTP，并创建 WebSocket 接入器。
//
// 绑定失败时返回 merr.ErrServiceListenFail。
func NewWSAcceptor(addr string, cfg Config) (*WSAcceptor, error) {
	if addr == "" {
		return nil, merr.WrapErrParameterMissing("addr")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, merr.WrapErrServiceListenFail(addr, err)
	}

	cfg = cfg.withDefaults()
	upgrader := cfg.Upgrader
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		}
	}
	a := &WSAcceptor{
		ln:       ln,
		cfg:      cfg,
		upgrader: upgrader,
	}
	a.SetLogger(log.With(log.FieldComponent("ws-acceptor"), zap.Stringer("addr", ln.Addr())))
	return a, nil
}

// Addr 实现 Acceptor.Addr。
func (a *WSAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Serve 实现 Acceptor.Serve。
func (a *WSAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return merr.WrapErrParameterMissing("handler")
	}

	logger := a.Logger()

	pool := newConnPool(a.cfg)
	defer pool.Release()

	var wg sync.WaitGroup
	defer wg.Wait()

	mux := http.NewServeMux()
	mux.HandleFunc(a.cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		ws, err := a.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade 已向客户端写出错误响应。
			h.OnError(nil, network.StageAccept, network.StageAccept.Wrap(err))
			return
		}

		lc := framer.NewWebSocketConn(ws, a.cfg.MaxLineSize)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			serveConn(ctx, a.cfg, lc, h)
		}); err != nil {
			wg.Done()
			_ = lc.Close()
			logger.RatedWarn(1, "connection rejected", log.FieldRemote(r.RemoteAddr), zap.Error(err))
			h.OnError(nil, network.StageAccept, network.StageAccept.Wrap(err))
		}
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		case <-stop:
		}
	}()

	logger.Info("websocket acceptor serving", zap.String("path", a.cfg.Path))
	err := srv.Serve(a.ln)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
		return nil
	}
	return network.StageAccept.Wrap(err)
}

// Close 实现 Acceptor.Close。
func (a *WSAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
	})
	return err
}
