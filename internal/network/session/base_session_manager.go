package session

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// BaseSessionManager 提供了基于内存 map 的 SessionManager 实现。
//
// 特性：
//   - 使用读写锁保证并发安全；
//   - Register 在遇到重复昵称时返回错误，避免覆盖旧会话；
//   - Range 在读锁内执行回调，Unregister 返回之后不会再有回调拿到被移除的会话。
type BaseSessionManager struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// 确保 BaseSessionManager 实现了 SessionManager 接口。
var _ SessionManager = (*BaseSessionManager)(nil)

// NewBaseSessionManager 创建一个空的 BaseSessionManager。
func NewBaseSessionManager() *BaseSessionManager {
	return &BaseSessionManager{
		sessions: make(map[string]Session),
	}
}

// Register 实现 SessionManager.Register。
func (m *BaseSessionManager) Register(name string, sess Session) error {
	if name == "" || sess == nil {
		return merr.WrapErrNameInvalid(name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[name]; exists {
		return merr.WrapErrNameTaken(name)
	}
	m.sessions[name] = sess
	return nil
}

// Get 实现 SessionManager.Get。
func (m *BaseSessionManager) Get(name string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[name]
	return sess, ok
}

// Unregister 实现 SessionManager.Unregister。
func (m *BaseSessionManager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[name]; !exists {
		return false
	}
	delete(m.sessions, name)
	return true
}

// Names 实现 SessionManager.Names。
func (m *BaseSessionManager) Names() []string {
	m.mu.RLock()
	names := lo.Keys(m.sessions)
	m.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Range 实现 SessionManager.Range。
//
// fn 在读锁内执行，不能阻塞，也不能再调用当前 SessionManager 的任何方法。
func (m *BaseSessionManager) Range(fn func(name string, sess Session) error) error {
	if fn == nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for name, sess := range m.sessions {
		if err := fn(name, sess); err != nil {
			errs = append(errs, err)
		}
	}
	return merr.Combine(errs...)
}

// Count 实现 SessionManager.Count。
func (m *BaseSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
