package acceptor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

// echoHandler 回显每一行，收到 "quit" 时关闭会话。
type echoHandler struct {
	nextID atomic.Uint64

	mu     sync.Mutex
	closed []error
	errs   []network.Stage
	done   chan struct{}
}

func newEchoHandler() *echoHandler {
	return &echoHandler{done: make(chan struct{}, 16)}
}

func (h *echoHandler) OnAccept(ctx context.Context, conn framer.LineConn) (session.Session, error) {
	id := h.nextID.Inc()
	sess := session.NewBaseSession(ctx, id, conn, session.Config{})
	sess.MarkRegistered(fmt.Sprintf("echo-%d", id))
	if err := sess.Prompt("> "); err != nil {
		return nil, err
	}
	return sess, nil
}

func (h *echoHandler) OnMessage(sess session.Session, line string) error {
	switch line {
	case "quit":
		return sess.Close()
	case "fail":
		return merr.WrapErrMessageMalformed(line)
	}
	return sess.Send("echo " + line)
}

func (h *echoHandler) OnSessionClosed(sess session.Session, cause error) {
	h.mu.Lock()
	h.closed = append(h.closed, cause)
	h.mu.Unlock()
	h.done <- struct{}{}
}

func (h *echoHandler) OnError(sess session.Session, stage network.Stage, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, stage)
}

func (h *echoHandler) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("session was not closed")
	}
}

func (h *echoHandler) stages() []network.Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]network.Stage(nil), h.errs...)
}

func startTCP(t *testing.T, cfg Config, h Handler) (*BaseAcceptor, context.CancelFunc, <-chan error) {
	t.Helper()
	a, err := NewTCPAcceptor("127.0.0.1:0", cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- a.Serve(ctx, h)
	}()
	return a, cancel, result
}

func dial(t *testing.T, addr net.Addr) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	return conn, bufio.NewReader(conn)
}

func readPrompt(t *testing.T, r *bufio.Reader) {
	t.Helper()
	buf := make([]byte, 2)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	require.Equal(t, "> ", string(buf))
}

func TestTCPEcho(t *testing.T) {
	h := newEchoHandler()
	a, cancel, result := startTCP(t, Config{}, h)
	defer cancel()

	conn, r := dial(t, a.Addr())
	defer conn.Close()
	readPrompt(t, r)

	_, err := conn.Write([]byte("hello\r\nfail\nworld\n"))
	require.NoError(t, err)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo hello\n", line)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "echo world\n", line)
	assert.Contains(t, h.stages(), network.StageDispatch)

	_, err = conn.Write([]byte("quit\n"))
	require.NoError(t, err)
	h.waitClosed(t)

	_, err = r.ReadString('\n')
	assert.Error(t, err)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestPeerDisconnect(t *testing.T) {
	h := newEchoHandler()
	a, cancel, _ := startTCP(t, Config{}, h)
	defer cancel()

	conn, r := dial(t, a.Addr())
	readPrompt(t, r)
	require.NoError(t, conn.Close())

	h.waitClosed(t)
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []error{nil}, h.closed)
}

func TestReadTimeout(t *testing.T) {
	h := newEchoHandler()
	a, cancel, _ := startTCP(t, Config{ReadTimeout: 100 * time.Millisecond}, h)
	defer cancel()

	conn, r := dial(t, a.Addr())
	defer conn.Close()
	readPrompt(t, r)

	h.waitClosed(t)
	h.mu.Lock()
	cause := h.closed[0]
	h.mu.Unlock()
	require.Error(t, cause)
	assert.True(t, errors.Is(cause, network.ErrRecvFailed))
	assert.True(t, framer.IsTimeout(cause))
}

func TestLineTooLong(t *testing.T) {
	h := newEchoHandler()
	a, cancel, _ := startTCP(t, Config{MaxLineSize: 8}, h)
	defer cancel()

	conn, r := dial(t, a.Addr())
	defer conn.Close()
	readPrompt(t, r)

	_, err := conn.Write([]byte(strings.Repeat("x", 64) + "\n"))
	require.NoError(t, err)

	h.waitClosed(t)
	h.mu.Lock()
	cause := h.closed[0]
	h.mu.Unlock()
	assert.ErrorIs(t, cause, merr.ErrSessionLineTooLong)
	assert.Contains(t, h.stages(), network.StageRecv)
}

func TestMaxConnections(t *testing.T) {
	h := newEchoHandler()
	a, cancel, _ := startTCP(t, Config{MaxConnections: 1}, h)
	defer cancel()

	first, r1 := dial(t, a.Addr())
	defer first.Close()
	readPrompt(t, r1)

	second, r2 := dial(t, a.Addr())
	defer second.Close()
	_, err := r2.ReadByte()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		for _, stage := range h.stages() {
			if stage == network.StageAccept {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesSessions(t *testing.T) {
	h := newEchoHandler()
	a, cancel, result := startTCP(t, Config{}, h)

	conn, r := dial(t, a.Addr())
	defer conn.Close()
	readPrompt(t, r)

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	h.waitClosed(t)

	_, err := r.ReadByte()
	assert.Error(t, err)
}

func TestListenFail(t *testing.T) {
	a, err := NewTCPAcceptor("127.0.0.1:0", Config{})
	require.NoError(t, err)
	defer a.Close()

	_, err = NewTCPAcceptor(a.Addr().String(), Config{})
	assert.ErrorIs(t, err, merr.ErrServiceListenFail)

	_, err = NewTCPAcceptor("", Config{})
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestWebSocketEcho(t *testing.T) {
	h := newEchoHandler()
	a, err := NewWSAcceptor("127.0.0.1:0", Config{Path: "/chat"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- a.Serve(ctx, h)
	}()

	url := "ws://" + a.Addr().String() + "/chat"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "> ", string(data))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo hello\n", string(data))

	cancel()
	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return")
	}
	h.waitClosed(t)
}
