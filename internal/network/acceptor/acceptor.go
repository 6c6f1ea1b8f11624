package acceptor

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"

	network "github.com/lk2023060901/chat-relay/internal/network"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/session"
)

// Config 描述 Acceptor 在连接层面的配置。
//
// 说明：
//   - ReadTimeout 控制单行读取的超时时间（为 0 表示不设置 deadline），超时即结束会话；
//   - MaxLineSize 控制单行的最大字节数，<= 0 时使用 framer.DefaultMaxLineSize；
//   - MaxConnections 限制同时服务的连接数，<= 0 表示不限制；超出时新连接被直接关闭；
//   - InboundQueueSize 控制每个连接已读取但尚未处理的行数；
//   - Path 控制 WebSocket 的升级路径（如 "/ws"），仅 WSAcceptor 使用。
type Config struct {
	ReadTimeout      time.Duration
	MaxLineSize      int
	MaxConnections   int
	InboundQueueSize int

	Path string

	// Upgrader 允许调用方自定义 gorilla/websocket 的升级行为。
	// 若为 nil，则使用内部默认的 Upgrader。
	Upgrader *websocket.Upgrader
}

// 默认配置。
func defaultConfig() Config {
	return Config{
		MaxLineSize:      framer.DefaultMaxLineSize,
		InboundQueueSize: 64,
		Path:             "/ws",
	}
}

func (cfg Config) withDefaults() Config {
	def := defaultConfig()
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = def.MaxLineSize
	}
	if cfg.InboundQueueSize <= 0 {
		cfg.InboundQueueSize = def.InboundQueueSize
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	return cfg
}

// Handler 由框架使用者实现，用于在服务器侧的各个阶段插入自定义逻辑。
//
// 说明：
//   - 同一会话上的 OnMessage 按读取顺序串行调用；
//   - 不同会话的回调可能并发执行。
type Handler interface {
	// OnAccept 在连接建立后被调用，负责创建 Session。
	//
	// 返回错误或 nil 会话时，连接被直接关闭。
	OnAccept(ctx context.Context, conn framer.LineConn) (session.Session, error)

	// OnMessage 在读取到一行文本后被调用。
	//
	// 返回的错误交由 OnError 记录，不会结束会话；
	// 需要结束会话时，由实现方关闭该会话。
	OnMessage(sess session.Session, line string) error

	// OnSessionClosed 在会话生命周期结束时被调用，每个会话恰好一次。
	//
	// 参数 cause 为结束原因，对端正常断开时为 nil。
	OnSessionClosed(sess session.Session, cause error)

	// OnError 在会话处理的各个阶段发生错误时被调用。
	//
	// stage 用于标识错误发生的位置，便于监控与排查；sess 可能为 nil。
	OnError(sess session.Session, stage network.Stage, err error)
}

// Acceptor 抽象了服务器侧的接入层。
//
// 职责：
//   - 在已绑定的地址上接受连接；
//   - 为每个连接创建 Session，并调用 Handler 的各阶段回调；
//   - ctx 取消后停止接受新连接，并等待所有会话结束。
type Acceptor interface {
	// Serve 启动服务，阻塞直至 ctx 取消、Close 被调用或出现致命错误。
	//
	// 正常停止时返回 nil。
	Serve(ctx context.Context, h Handler) error

	// Addr 返回实际监听的地址。
	Addr() net.Addr

	// Close 关闭监听器，已建立的会话不受影响。
	Close() error
}
