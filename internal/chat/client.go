package chat

import (
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/metrics"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// Client 是一条聊天连接对应的会话。
//
// 除 Send/Prompt 外，Client 的方法只应由该连接自己的协程调用。
type Client struct {
	*session.BaseSession

	hub       *Hub
	transport string
}

// RegisterName 尝试以 proposed 注册昵称。
//
// 去除首尾空白后为空的昵称无效；有效昵称按原样作为注册表的键，不做裁剪。
//
// 行为：
//   - 成功：会话进入 Registered，并广播 "Server (to all): <name> joined the chat."；
//   - 失败：回复 ReplyNicknameRejected 并返回 merr.ErrNameInvalid 或 merr.ErrNameTaken，
//     会话保持 Unregistered，由调用方终止会话。
func (c *Client) RegisterName(proposed string) error {
	if phase := c.Phase(); phase != session.PhaseUnregistered {
		return merr.WrapErrSessionPhase(c.ID(), phase)
	}

	name := proposed
	var err error
	if strings.TrimSpace(name) == "" {
		err = merr.WrapErrNameInvalid(proposed)
	} else {
		// 先占用昵称再切换阶段：其间别人的投递照常入队，阶段只由本连接的协程读取。
		err = c.hub.registry.Register(name, c)
	}
	if err != nil {
		result := metrics.RegisterInvalid
		if errors.Is(err, merr.ErrNameTaken) {
			result = metrics.RegisterTaken
		}
		metrics.Registrations.WithLabelValues(result).Inc()
		log.Ctx(c.Context()).Info("nickname rejected", zap.String("proposed", proposed), zap.Error(err))
		_ = c.Send(ReplyNicknameRejected)
		return err
	}

	if !c.MarkRegistered(name) {
		c.hub.registry.Unregister(name)
		return merr.WrapErrSessionPhase(c.ID(), c.Phase())
	}
	metrics.Registrations.WithLabelValues(metrics.RegisterSuccess).Inc()
	metrics.RegisteredUsers.Inc()

	log.Ctx(c.Context()).Info("user joined", log.FieldUser(name), zap.String("transport", c.transport))
	_ = c.hub.Broadcast(c.Context(), ServerSender, joinedNotice(name))
	return nil
}

// Terminate 结束会话，多次调用只有第一次生效。
//
// 已注册的会话先从注册表移除，再广播 "Server (to all): <name> left the chat."，
// 最后关闭底层连接。
func (c *Client) Terminate() {
	if c.MarkTerminated() == session.PhaseRegistered {
		name := c.Name()
		if c.hub.registry.Unregister(name) {
			metrics.RegisteredUsers.Dec()
		}
		log.Ctx(c.Context()).Info("user left", log.FieldUser(name))
		_ = c.hub.Broadcast(c.Context(), ServerSender, leftNotice(name))
	}
	_ = c.Close()
}
