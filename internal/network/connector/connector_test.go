package connector

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

const testPrompt = "Name: "

// serveEcho 发送提示后逐行回显，收到 "bye" 时关闭连接。
func serveEcho(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				_, _ = conn.Write([]byte(testPrompt))
				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					if scanner.Text() == "bye" {
						_, _ = conn.Write([]byte("see you\n"))
						return
					}
					_, _ = conn.Write([]byte("echo " + scanner.Text() + "\n"))
				}
			}(conn)
		}
	}()
	return ln
}

func TestTCPConnector(t *testing.T) {
	ln := serveEcho(t)
	defer ln.Close()

	collector := NewCollector(8)
	conn, err := NewTCPConnector(Config{Prompt: testPrompt, WriteTimeout: time.Second}).
		Dial(context.Background(), ln.Addr().String(), collector)
	require.NoError(t, err)
	defer conn.Close()

	line, err := collector.Next(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, testPrompt, line)

	require.NoError(t, conn.Send("hi"))
	line, err = collector.Next(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo hi", line)

	_, err = collector.Next(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// 对端关闭前发送的行仍然可以读到。
	require.NoError(t, conn.Send("bye"))
	line, err = collector.Next(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "see you", line)

	select {
	case <-collector.Closed():
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not closed")
	}
	assert.NoError(t, collector.Cause())

	_, err = collector.Next(50 * time.Millisecond)
	assert.ErrorIs(t, err, merr.ErrServiceStopped)
	assert.Error(t, conn.Send("again"))
}

func TestLocalClose(t *testing.T) {
	ln := serveEcho(t)
	defer ln.Close()

	collector := NewCollector(8)
	conn, err := NewTCPConnector(Config{Prompt: testPrompt}).
		Dial(context.Background(), ln.Addr().String(), collector)
	require.NoError(t, err)

	_, err = collector.Next(5 * time.Second)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.NoError(t, collector.Cause())
}

func TestDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewTCPConnector(Config{}).Dial(context.Background(), addr, NewCollector(1))
	assert.Error(t, err)

	_, err = NewTCPConnector(Config{}).Dial(context.Background(), addr, nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestWSConnector(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte(testPrompt))
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			reply := "echo " + strings.TrimSuffix(string(data), "\n") + "\n"
			_ = ws.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}))
	defer srv.Close()

	collector := NewCollector(8)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := NewWSConnector(Config{Prompt: testPrompt}).Dial(context.Background(), url, collector)
	require.NoError(t, err)
	defer conn.Close()

	line, err := collector.Next(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, testPrompt, line)

	require.NoError(t, conn.Send("LIST:"))
	line, err = collector.Next(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo LIST:", line)
}
