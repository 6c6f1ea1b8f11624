package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/acceptor"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/router"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/metrics"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// 不属于已知命令的入站行在指标中使用的类型标签。
const (
	commandMalformed = "malformed"
	commandUnknown   = "unknown"
)

// connHandler 将接入层的回调转换为 Hub 上的会话操作。
type connHandler struct {
	hub       *Hub
	transport string
}

var _ acceptor.Handler = (*connHandler)(nil)

// Handler 返回供接入层使用的回调，transport 用作日志与指标标签。
func (h *Hub) Handler(transport string) acceptor.Handler {
	return &connHandler{hub: h, transport: transport}
}

// OnAccept 创建会话并发送昵称提示。
func (h *connHandler) OnAccept(ctx context.Context, conn framer.LineConn) (session.Session, error) {
	c := h.hub.newClient(ctx, conn, h.transport)
	if err := c.Prompt(PromptNickname); err != nil {
		_ = c.Close()
		return nil, err
	}
	metrics.Sessions.WithLabelValues(h.transport).Inc()
	log.Ctx(c.Context()).Debug("connection accepted", zap.String("transport", h.transport))
	return c, nil
}

// OnMessage 按会话阶段处理一行文本：
// 未注册时整行作为昵称，已注册时交给路由，已终止时忽略。
func (h *connHandler) OnMessage(sess session.Session, line string) error {
	c := sess.(*Client)

	switch c.Phase() {
	case session.PhaseUnregistered:
		if err := c.RegisterName(line); err != nil {
			c.Terminate()
			return err
		}
		return nil
	case session.PhaseRegistered:
		if strings.TrimSpace(line) != "" {
			metrics.Commands.WithLabelValues(commandLabel(line)).Inc()
		}
		return h.hub.router.Handle(c.Context(), c, line)
	default:
		return nil
	}
}

// OnSessionClosed 终止会话并更新连接数。
func (h *connHandler) OnSessionClosed(sess session.Session, cause error) {
	sess.(*Client).Terminate()
	metrics.Sessions.WithLabelValues(h.transport).Dec()

	fields := []zap.Field{zap.String("transport", h.transport)}
	if name := sess.Name(); name != "" {
		fields = append(fields, log.FieldUser(name))
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	log.Ctx(sess.Context()).Info("connection closed", fields...)
}

// OnError 记录各阶段的错误。
// 客户端输入引起的错误以及取消、超时只在 Debug 级别输出。
func (h *connHandler) OnError(sess session.Session, stage network.Stage, err error) {
	logger := h.hub.Logger()
	if sess != nil {
		logger = log.Ctx(sess.Context())
	}
	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.Int32("code", merr.Code(err)),
		zap.Error(err),
	}
	if sess != nil && sess.Name() != "" {
		fields = append(fields, log.FieldUser(sess.Name()))
	}

	switch {
	case merr.GetErrorType(err) == merr.InputError:
		logger.Debug("client input rejected", fields...)
	case merr.IsCanceledOrTimeout(err):
		logger.Debug("connection interrupted", fields...)
	default:
		logger.Warn("connection error", fields...)
	}
}

// commandLabel 返回入站行在指标中的类型标签，避免任意输入产生新的标签值。
func commandLabel(line string) string {
	typ, _, ok := router.Parse(line)
	if !ok {
		return commandMalformed
	}
	switch upper := strings.ToUpper(typ); upper {
	case TypeBroadcast, TypePrivate, TypeList:
		return upper
	default:
		return commandUnknown
	}
}
