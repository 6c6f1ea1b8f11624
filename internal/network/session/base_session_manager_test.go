package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// stubSession 是只记录发送内容的 Session 实现。
type stubSession struct {
	id   uint64
	fail error

	mu    sync.Mutex
	lines []string
}

func (s *stubSession) ID() uint64               { return s.id }
func (s *stubSession) Name() string             { return "" }
func (s *stubSession) Phase() Phase             { return PhaseRegistered }
func (s *stubSession) Context() context.Context { return context.Background() }
func (s *stubSession) RemoteAddr() net.Addr     { return nil }
func (s *stubSession) LocalAddr() net.Addr      { return nil }
func (s *stubSession) Prompt(text string) error { return s.Send(text) }
func (s *stubSession) Close() error             { return nil }

func (s *stubSession) Send(line string) error {
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return nil
}

func TestRegisterAndLookup(t *testing.T) {
	m := NewBaseSessionManager()

	alice := &stubSession{id: 1}
	require.NoError(t, m.Register("alice", alice))
	assert.ErrorIs(t, m.Register("alice", &stubSession{id: 2}), merr.ErrNameTaken)
	assert.ErrorIs(t, m.Register("", &stubSession{id: 3}), merr.ErrNameInvalid)

	got, ok := m.Get("alice")
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.ID())

	_, ok = m.Get("Alice")
	assert.False(t, ok)

	assert.Equal(t, 1, m.Count())
	assert.True(t, m.Unregister("alice"))
	assert.False(t, m.Unregister("alice"))
	assert.Equal(t, 0, m.Count())

	// 昵称释放后可以重新注册。
	assert.NoError(t, m.Register("alice", &stubSession{id: 4}))
}

func TestConcurrentRegisterSameName(t *testing.T) {
	m := NewBaseSessionManager()

	const workers = 32
	var (
		wg      sync.WaitGroup
		success atomic.Int32
		taken   atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			err := m.Register("bob", &stubSession{id: id})
			switch {
			case err == nil:
				success.Inc()
			case errors.Is(err, merr.ErrNameTaken):
				taken.Inc()
			}
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, int32(workers-1), taken.Load())
	assert.Equal(t, 1, m.Count())
}

func TestNamesSorted(t *testing.T) {
	m := NewBaseSessionManager()
	for i, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, m.Register(name, &stubSession{id: uint64(i)}))
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, m.Names())
	assert.Empty(t, NewBaseSessionManager().Names())
}

func TestRangeContinuesOnError(t *testing.T) {
	m := NewBaseSessionManager()

	alice := &stubSession{id: 1}
	bob := &stubSession{id: 2, fail: merr.WrapErrSessionSendFull(2, 1)}
	carol := &stubSession{id: 3}
	require.NoError(t, m.Register("alice", alice))
	require.NoError(t, m.Register("bob", bob))
	require.NoError(t, m.Register("carol", carol))

	var visited []string
	err := m.Range(func(name string, sess Session) error {
		visited = append(visited, name)
		return sess.Send("hello")
	})

	assert.ErrorIs(t, err, merr.ErrSessionSendFull)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, visited)
	assert.Equal(t, []string{"hello"}, alice.lines)
	assert.Equal(t, []string{"hello"}, carol.lines)

	assert.NoError(t, m.Range(nil))
	assert.NoError(t, m.Range(func(string, Session) error { return nil }))
}

func TestUnregisterWaitsForRange(t *testing.T) {
	m := NewBaseSessionManager()
	sessions := map[string]*stubSession{
		"alice": {id: 1},
		"bob":   {id: 2},
	}
	for name, sess := range sessions {
		require.NoError(t, m.Register(name, sess))
	}

	removed := make(chan struct{})
	var target string
	err := m.Range(func(name string, sess Session) error {
		if target == "" {
			target = "bob"
			if name == "bob" {
				target = "alice"
			}
			go func() {
				m.Unregister(target)
				close(removed)
			}()
			select {
			case <-removed:
				t.Error("unregister completed while range was in progress")
			case <-time.After(100 * time.Millisecond):
			}
		}
		return sess.Send("hello")
	})
	require.NoError(t, err)

	// 移除发生在遍历结束之后，本次遍历完整投递给两个会话。
	for _, sess := range sessions {
		assert.Equal(t, []string{"hello"}, sess.lines)
	}

	select {
	case <-removed:
	case <-time.After(5 * time.Second):
		t.Fatal("unregister did not complete after range returned")
	}

	// 移除之后的遍历不再触达被移除的会话。
	require.NoError(t, m.Range(func(name string, sess Session) error {
		return sess.Send("again")
	}))
	assert.Equal(t, []string{"hello"}, sessions[target].lines)
	assert.Equal(t, 1, m.Count())
}
