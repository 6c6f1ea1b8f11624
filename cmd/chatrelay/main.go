package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/chat-relay/application"
	"github.com/lk2023060901/chat-relay/internal/chat"
	"github.com/lk2023060901/chat-relay/internal/network/acceptor"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/metrics"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

func main() {
	app := application.New()
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "[chatrelay] startup failed: %v\n", err)
		os.Exit(1)
	}
	cfg := app.Config()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)
	hub := chat.NewHub(cfg.SessionOptions(), cfg.HubOptions()...)

	// 监听失败直接退出进程。
	tcp, err := acceptor.NewTCPAcceptor(cfg.Addr(), cfg.AcceptorConfig())
	if err != nil {
		log.Fatal("bind chat listener failed", zap.String("addr", cfg.Addr()), zap.Error(err))
	}
	log.Info("chat relay listening", zap.Stringer("addr", tcp.Addr()))

	var ws *acceptor.WSAcceptor
	if cfg.WebSocket.Addr != "" {
		ws, err = acceptor.NewWSAcceptor(cfg.WebSocket.Addr, cfg.AcceptorConfig())
		if err != nil {
			log.Fatal("bind websocket listener failed", zap.String("addr", cfg.WebSocket.Addr), zap.Error(err))
		}
		log.Info("websocket gateway listening",
			zap.Stringer("addr", ws.Addr()), zap.String("path", cfg.WebSocket.Path))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcp.Serve(gctx, hub.Handler(metrics.TransportTCP))
	})
	if ws != nil {
		g.Go(func() error {
			return ws.Serve(gctx, hub.Handler(metrics.TransportWebSocket))
		})
	}
	if cfg.Metrics.Addr != "" {
		health := func() error {
			if gctx.Err() != nil {
				return merr.WrapErrServiceNotReady("stopping")
			}
			return nil
		}
		g.Go(func() error {
			log.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			return metrics.Serve(gctx, cfg.Metrics.Addr, metrics.NewHandler(prometheus.DefaultGatherer, health))
		})
	}

	err = g.Wait()
	if err != nil {
		log.Error("chat relay stopped with error", zap.Error(err))
	} else {
		log.Info("chat relay stopped", zap.Int("remainingUsers", hub.Count()))
	}
	_ = log.Sync()
	log.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}
