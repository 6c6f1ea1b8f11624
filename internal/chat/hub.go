package chat

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/router"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/metrics"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const (
	deliveryRateGroup   = "chat.delivery"
	deliveryRatePerSec  = 1.0
	deliveryRateBalance = 30.0
)

// Hub 将昵称注册表与命令路由组合在一起，是聊天服务的核心。
//
// 说明：
//   - 注册表是进程内唯一被多个连接共享的状态；
//   - 投递只把文本交给接收方会话的发送队列，不会在调用方协程中写连接；
//   - 同一个 Hub 可以同时服务多个接入层（TCP 与 WebSocket）。
type Hub struct {
	log.Binder

	registry session.SessionManager
	router   router.Router

	nextID  atomic.Uint64
	sessCfg session.Config
	opt     *hubOption
}

type hubOption struct {
	sessionLogLevel *zapcore.Level
}

// HubOption 是 NewHub 的可选项。
type HubOption func(*hubOption)

// WithSessionLogLevel 提高连接相关日志的级别，进程级日志不受影响。
// level 低于全局级别时不生效。
func WithSessionLogLevel(level zapcore.Level) HubOption {
	return func(o *hubOption) {
		o.sessionLogLevel = &level
	}
}

// NewHub 创建一个 Hub，cfg 用于之后创建的每个会话。
func NewHub(cfg session.Config, opts ...HubOption) *Hub {
	opt := &hubOption{}
	for _, o := range opts {
		o(opt)
	}

	h := &Hub{
		registry: session.NewBaseSessionManager(),
		router:   router.New(),
		sessCfg:  cfg,
		opt:      opt,
	}
	h.SetLogger(log.With(log.FieldComponent("hub")))
	h.registerRoutes()
	return h
}

func (h *Hub) registerRoutes() {
	lo.Must0(h.router.Register(TypeBroadcast, h.handleBroadcast))
	lo.Must0(h.router.Register(TypePrivate, h.handlePrivate))
	lo.Must0(h.router.Register(TypeList, h.handleList))
}

// Names 返回当前已注册的昵称，按字典序排列。
func (h *Hub) Names() []string {
	return h.registry.Names()
}

// Count 返回当前已注册的用户数。
func (h *Hub) Count() int {
	return h.registry.Count()
}

// Broadcast 将 "<sender> (to all): <text>" 投递给所有已注册会话，包括发送方自己。
//
// 单个接收方投递失败不会影响其他接收方，所有失败合并后返回。
func (h *Hub) Broadcast(ctx context.Context, sender, text string) error {
	line := formatBroadcast(sender, text)
	return h.registry.Range(func(name string, sess session.Session) error {
		return h.deliver(ctx, name, sess, line)
	})
}

// Private 将 "<sender> (private): <text>" 投递给 recipient。
//
// recipient 未注册时向 from 回复 "User <recipient> not found."，
// 并返回 merr.ErrUserNotFound。
func (h *Hub) Private(ctx context.Context, from session.Session, recipient, text string) error {
	target, ok := h.registry.Get(recipient)
	if !ok {
		if err := from.Send(formatUserNotFound(recipient)); err != nil {
			return merr.Combine(merr.WrapErrUserNotFound(recipient), err)
		}
		return merr.WrapErrUserNotFound(recipient)
	}
	return h.deliver(ctx, recipient, target, formatPrivate(from.Name(), text))
}

// deliver 把一行文本交给接收方的发送队列，并记录失败。
// 失败不会通知发送方。
func (h *Hub) deliver(ctx context.Context, recipient string, sess session.Session, line string) error {
	err := sess.Send(line)
	if err == nil {
		return nil
	}

	logger := log.Ctx(ctx).With(zap.String("recipient", recipient))
	switch {
	case errors.Is(err, merr.ErrSessionClosed):
		metrics.DeliveryFailures.WithLabelValues(metrics.DeliveryClosed).Inc()
		logger.Debug("recipient already closed", zap.Error(err))
	case errors.Is(err, merr.ErrSessionSendFull):
		metrics.DeliveryFailures.WithLabelValues(metrics.DeliveryQueueFull).Inc()
		logger.WithRateGroup(deliveryRateGroup, deliveryRatePerSec, deliveryRateBalance).
			RatedWarn(1, "recipient queue full, line dropped", zap.Error(err))
	default:
		metrics.DeliveryFailures.WithLabelValues(metrics.DeliveryOther).Inc()
		logger.WithRateGroup(deliveryRateGroup, deliveryRatePerSec, deliveryRateBalance).
			RatedWarn(1, "deliver line failed", zap.Error(err))
	}
	return err
}

// newClient 创建一个未注册的客户端会话。
func (h *Hub) newClient(ctx context.Context, conn framer.LineConn, transport string) *Client {
	id := h.nextID.Inc()
	if h.opt.sessionLogLevel != nil {
		ctx = log.WithLevel(ctx, *h.opt.sessionLogLevel)
	}
	ctx = log.WithSession(ctx, id, conn.RemoteAddr().String())

	cfg := h.sessCfg
	cfg.OnSendError = func(err error) {
		log.Ctx(ctx).WithRateGroup(deliveryRateGroup, deliveryRatePerSec, deliveryRateBalance).
			RatedWarn(1, "write to connection failed", zap.Error(err))
	}

	return &Client{
		BaseSession: session.NewBaseSession(ctx, id, conn, cfg),
		hub:         h,
		transport:   transport,
	}
}
