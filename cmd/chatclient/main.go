package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/pflag"

	"github.com/lk2023060901/chat-relay/internal/chat"
	"github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/connector"
)

type options struct {
	addr        string
	url         string
	name        string
	dialTimeout time.Duration
}

// printer 实现 connector.Handler，把服务端发来的每一行写到 out。
type printer struct {
	out    io.Writer
	errOut io.Writer
	closed chan error
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{out: out, errOut: errOut, closed: make(chan error, 1)}
}

func (p *printer) OnConnected(conn connector.ClientConn) {
	fmt.Fprintf(p.errOut, "[client] connected: remote=%v\n", conn.RemoteAddr())
}

func (p *printer) OnMessage(_ connector.ClientConn, line string) {
	// 昵称提示不带换行，保持光标停在提示之后。
	if line == chat.PromptNickname {
		fmt.Fprint(p.out, line)
		return
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) OnClosed(_ connector.ClientConn, err error) {
	select {
	case p.closed <- err:
	default:
	}
}

func (p *printer) OnError(_ connector.ClientConn, stage network.Stage, err error) {
	fmt.Fprintf(p.errOut, "[client] error: stage=%s err=%v\n", stage, err)
}

// dial 按指数退避重试拨号，直到成功、ctx 取消或超过 maxElapsed。
func dial(ctx context.Context, c connector.Connector, target string, h connector.Handler, maxElapsed time.Duration, errOut io.Writer) (connector.ClientConn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = maxElapsed

	var conn connector.ClientConn
	err := backoff.RetryNotify(func() error {
		var err error
		conn, err = c.Dial(ctx, target, h)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		fmt.Fprintf(errOut, "[client] connect failed, will retry in %v: %v\n", next, err)
	})
	return conn, err
}

// pump 把 in 中的每一行发送给服务端，in 结束后关闭连接。
func pump(conn connector.ClientConn, in io.Reader, errOut io.Writer) {
	defer conn.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := conn.Send(scanner.Text()); err != nil {
			fmt.Fprintf(errOut, "[client] send failed: %v\n", err)
			return
		}
	}
}

// run 连接聊天服务，直到连接关闭或 ctx 被取消。
func run(ctx context.Context, opts options, in io.Reader, out, errOut io.Writer) error {
	cfg := connector.Config{Prompt: chat.PromptNickname}

	var (
		c      connector.Connector
		target string
	)
	if opts.url != "" {
		c, target = connector.NewWSConnector(cfg), opts.url
	} else {
		c, target = connector.NewTCPConnector(cfg), opts.addr
	}

	h := newPrinter(out, errOut)
	conn, err := dial(ctx, c, target, h, opts.dialTimeout, errOut)
	if err != nil {
		return err
	}
	defer conn.Close()

	if opts.name != "" {
		if err := conn.Send(opts.name); err != nil {
			return err
		}
	}
	go pump(conn, in, errOut)

	select {
	case <-ctx.Done():
		return nil
	case err := <-h.closed:
		return err
	}
}

func main() {
	var opts options
	pflag.StringVar(&opts.addr, "addr", "127.0.0.1:5555", "chat server TCP address (host:port)")
	pflag.StringVar(&opts.url, "url", "", "chat server WebSocket URL, e.g. ws://127.0.0.1:5556/ws; overrides --addr")
	pflag.StringVar(&opts.name, "name", "", "nickname sent right after connecting")
	pflag.DurationVar(&opts.dialTimeout, "dial-timeout", 10*time.Second, "give up connecting after this long (0 retries forever)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "[client] %v\n", err)
		os.Exit(1)
	}
}
