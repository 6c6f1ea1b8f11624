package session

// SessionManager 维护当前所有已注册会话的昵称索引。
//
// 职责说明：
//   - 只负责会话的注册、查询和移除，不直接创建或关闭底层连接；
//   - Session 的具体生命周期（何时创建/关闭）由上层的 acceptor 与业务决定；
//   - 业务层可以基于 SessionManager 实现广播、按昵称定向发送等能力。
type SessionManager interface {
	// Register 以昵称为键注册一个会话。
	//
	// 要求：
	//   - name 为空时返回 merr.ErrNameInvalid；
	//   - 昵称已被占用时返回 merr.ErrNameTaken，不会覆盖旧会话；
	//   - 检查与插入是一个原子操作，同名并发注册最多只有一个成功。
	Register(name string, sess Session) error

	// Get 根据昵称查找会话。
	Get(name string) (sess Session, ok bool)

	// Unregister 移除指定昵称的会话，返回该昵称此前是否存在。
	//
	// 说明：
	//   - 仅删除索引，不负责调用 sess.Close()。
	Unregister(name string) bool

	// Names 返回当前所有昵称，按字典序排列。
	Names() []string

	// Range 遍历当前所有已注册会话。
	//
	// 说明：
	//   - 单个回调返回错误不会中断遍历；
	//   - 所有回调返回的错误合并后作为结果返回；
	//   - 遍历期间 Register/Unregister 会被阻塞，回调不能阻塞，也不能重入 SessionManager。
	Range(fn func(name string, sess Session) error) error

	// Count 返回当前已注册的会话数量。
	Count() int
}
