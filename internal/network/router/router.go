package router

import (
	"context"
	"strings"

	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const (
	// Separator 分隔 TYPE 与 CONTENT。
	Separator = ":"

	// ReplyInvalidFormat 在入站行缺少分隔符时回复给发送方。
	ReplyInvalidFormat = "Invalid message format. Use: TYPE:CONTENT"
	// ReplyUnknownType 在 TYPE 未注册时回复给发送方。
	ReplyUnknownType = "Unknown message type."
)

// Handler 是框架暴露给业务层的命令处理函数签名。
//
// 说明：
//   - ctx    ：当前会话的上下文，携带日志字段；
//   - sess   ：发出命令的会话，用于回复；
//   - content：第一个分隔符之后的全部内容，可能为空字符串，也可能包含更多分隔符；
//   - 返回：业务执行失败时的错误，由上层决定如何记录；回复发送方的文本由 Handler 自行调用 sess.Send。
type Handler func(ctx context.Context, sess session.Session, content string) error

// Router 维护命令类型到 Handler 的映射，并负责从“原始行”到业务 Handler 的调度。
//
// 典型调用链（服务器侧）：
//  1. framer 从底层连接读取出一行文本；
//  2. 上层调用 Router.Handle(ctx, sess, line)；
//  3. Router 按第一个分隔符拆出 TYPE 与 CONTENT，并忽略大小写查找 Handler；
//  4. 格式错误或类型未知时，Router 直接回复发送方，会话继续。
type Router interface {
	// Register 为命令类型 typ 注册处理函数。
	//
	// 要求：
	//   - typ 按大写存储，匹配时忽略大小写；
	//   - 同一类型不允许重复注册，重复时返回 merr.ErrMessageRoute。
	Register(typ string, h Handler) error

	// Handle 处理一条入站行。
	//
	// 行为：
	//   - 空行或仅含空白的行被忽略，返回 nil；
	//   - 缺少分隔符时回复 ReplyInvalidFormat，返回 merr.ErrMessageMalformed；
	//   - 类型未注册时回复 ReplyUnknownType，返回 merr.ErrMessageUnknownType；
	//   - 其余情况返回 Handler 的结果。
	Handle(ctx context.Context, sess session.Session, line string) error
}

// defaultRouter 是 Router 接口的基础实现，基于一个简单的 map[TYPE]Handler 进行路由。
type defaultRouter struct {
	routes map[string]Handler
}

// 编译期断言：确保 defaultRouter 实现了 Router 接口。
var _ Router = (*defaultRouter)(nil)

// New 创建一个空的 Router 实例。
//
// Register 与 Handle 不能并发调用：所有路由应在开始服务前注册完毕。
func New() Router {
	return &defaultRouter{
		routes: make(map[string]Handler),
	}
}

// Register 实现 Router.Register。
func (r *defaultRouter) Register(typ string, h Handler) error {
	if typ == "" || strings.Contains(typ, Separator) {
		return merr.WrapErrMessageRoute(typ, "invalid type")
	}
	if h == nil {
		return merr.WrapErrMessageRoute(typ, "handler is nil")
	}
	key := strings.ToUpper(typ)
	if _, exists := r.routes[key]; exists {
		return merr.WrapErrMessageRoute(typ, "already registered")
	}
	r.routes[key] = h
	return nil
}

// Handle 实现 Router.Handle。
func (r *defaultRouter) Handle(ctx context.Context, sess session.Session, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	typ, content, ok := Parse(line)
	if !ok {
		return r.reject(sess, ReplyInvalidFormat, merr.WrapErrMessageMalformed(line))
	}

	h, exists := r.routes[strings.ToUpper(typ)]
	if !exists {
		return r.reject(sess, ReplyUnknownType, merr.WrapErrMessageUnknownType(typ))
	}
	return h(ctx, sess, content)
}

// reject 回复发送方并返回 cause；回复失败时一并返回。
func (r *defaultRouter) reject(sess session.Session, reply string, cause error) error {
	if err := sess.Send(reply); err != nil {
		return merr.Combine(cause, err)
	}
	return cause
}

// Parse 按第一个分隔符将 line 拆分为 TYPE 与 CONTENT。
// TYPE 与 CONTENT 均原样返回，不做空白裁剪；line 不含分隔符时 ok 为 false。
func Parse(line string) (typ, content string, ok bool) {
	return strings.Cut(line, Separator)
}
