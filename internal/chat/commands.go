package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/lk2023060901/chat-relay/internal/network/router"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// handleBroadcast 处理 BROADCAST:<text>。
// 投递失败只记录日志，不影响发送方。
func (h *Hub) handleBroadcast(ctx context.Context, sess session.Session, content string) error {
	logger := log.Ctx(ctx).With(log.FieldUser(sess.Name()))
	if err := h.Broadcast(ctx, sess.Name(), content); err != nil {
		logger.Debug("broadcast partially delivered", zap.Error(err))
	}
	logger.Info("broadcast message", zap.String("content", content))
	return nil
}

// handlePrivate 处理 PRIVATE:<recipient>:<text>。
// recipient 与 text 均原样使用，不做空白裁剪。
func (h *Hub) handlePrivate(ctx context.Context, sess session.Session, content string) error {
	recipient, text, ok := router.Parse(content)
	if !ok {
		if err := sess.Send(ReplyInvalidPrivate); err != nil {
			return merr.Combine(merr.WrapErrMessageMalformed(content, "private"), err)
		}
		return merr.WrapErrMessageMalformed(content, "private")
	}

	logger := log.Ctx(ctx).With(log.FieldUser(sess.Name()), zap.String("recipient", recipient))
	if err := h.Private(ctx, sess, recipient, text); err != nil {
		if merr.GetErrorType(err) == merr.InputError {
			return err
		}
		logger.Debug("private message not delivered", zap.Error(err))
		return nil
	}
	logger.Info("private message", zap.String("content", text))
	return nil
}

// handleList 处理 LIST:，内容被忽略。
func (h *Hub) handleList(ctx context.Context, sess session.Session, _ string) error {
	names := h.registry.Names()
	if err := sess.Send(formatUserList(names)); err != nil {
		return err
	}
	log.Ctx(ctx).Info("sent user list", log.FieldUser(sess.Name()), zap.Strings("users", names))
	return nil
}
