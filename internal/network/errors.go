package network

import "github.com/cockroachdb/errors"

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在回调中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageAccept    Stage = "accept"    // 监听器 Accept 或 WebSocket 升级
	StageHandshake Stage = "handshake" // 昵称注册
	StageRecv      Stage = "recv"      // 从连接读取一行
	StageDispatch  Stage = "dispatch"  // 一行命令 -> 业务处理
	StageSend      Stage = "send"      // 一行回复写入连接
)

// 统一的错误码常量。
//
// 注意：这些是用于日志/监控的稳定字符串，真正的 error 对象在下面构造。
const (
	ErrCodeAcceptFailed    = "network:accept_failed"
	ErrCodeHandshakeFailed = "network:handshake_failed"
	ErrCodeRecvFailed      = "network:recv_failed"
	ErrCodeDispatchFailed  = "network:dispatch_failed"
	ErrCodeSendFailed      = "network:send_failed"
)

var (
	// ErrAcceptFailed 表示接受连接失败（例如 WebSocket 升级失败）。
	ErrAcceptFailed = errors.New(ErrCodeAcceptFailed)

	// ErrHandshakeFailed 表示昵称注册阶段失败。
	ErrHandshakeFailed = errors.New(ErrCodeHandshakeFailed)

	// ErrRecvFailed 表示在读取底层连接数据时发生错误。
	ErrRecvFailed = errors.New(ErrCodeRecvFailed)

	// ErrDispatchFailed 表示在将一行命令分发给业务处理时发生错误。
	ErrDispatchFailed = errors.New(ErrCodeDispatchFailed)

	// ErrSendFailed 表示在发送数据到对端时发生错误。
	ErrSendFailed = errors.New(ErrCodeSendFailed)
)

// Err 返回阶段对应的哨兵错误，未知阶段返回 nil。
func (s Stage) Err() error {
	switch s {
	case StageAccept:
		return ErrAcceptFailed
	case StageHandshake:
		return ErrHandshakeFailed
	case StageRecv:
		return ErrRecvFailed
	case StageDispatch:
		return ErrDispatchFailed
	case StageSend:
		return ErrSendFailed
	default:
		return nil
	}
}

// Wrap 为 err 打上阶段标记。
// 返回的错误同时满足 errors.Is(ret, err) 与 errors.Is(ret, s.Err())。
func (s Stage) Wrap(err error) error {
	if err == nil {
		return nil
	}
	ref := s.Err()
	if ref == nil {
		return err
	}
	return errors.Mark(err, ref)
}
