package session

import (
	"context"
	"net"
)

// Phase 表示会话所处的生命周期阶段，只会单调前进：
// Unregistered -> Registered -> Terminated，或 Unregistered -> Terminated。
type Phase int32

const (
	PhaseUnregistered Phase = iota
	PhaseRegistered
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseUnregistered:
		return "unregistered"
	case PhaseRegistered:
		return "registered"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session 抽象了一条按行收发文本的网络会话。
//
// 约定：
//   - 每个 Session 对应一条底层连接（例如一个 TCP 连接或 WebSocket 会话）；
//   - Session ID 使用 64 位无符号整型，在进程内唯一；
//   - 除 Send/Prompt 外，会话的状态只由其所属连接的协程修改。
type Session interface {
	// ID 返回该会话在进程内的唯一标识。
	ID() uint64

	// Name 返回注册成功后的昵称，注册前为空字符串。
	Name() string

	// Phase 返回会话当前的生命周期阶段。
	Phase() Phase

	// Context 返回与该会话关联的上下文，会话关闭时 Done() 被触发。
	//
	// 说明：
	//   - 上下文中携带了会话编号、对端地址等日志字段，可直接用于 log.Ctx。
	Context() context.Context

	// RemoteAddr 返回远端地址（客户端地址）。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址（服务器监听地址）。
	LocalAddr() net.Addr

	// Send 将一行文本投递到该会话的发送队列，不等待写出。
	//
	// 行为：
	//   - 会话已关闭时返回 merr.ErrSessionClosed；
	//   - 发送队列已满时返回 merr.ErrSessionSendFull，本行被丢弃；
	//   - 任意协程都可以调用，写出只发生在会话自己的发送协程中。
	Send(line string) error

	// Prompt 与 Send 相同，但写出时不追加换行。
	Prompt(text string) error

	// Close 关闭该会话：取消 Context，尽力写出队列中剩余的数据后关闭底层连接。
	//
	// 说明：
	//   - 多次调用是幂等的；
	//   - 返回时底层连接已经关闭。
	Close() error
}
