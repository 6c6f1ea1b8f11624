package application

import (
	"net"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/chat-relay/internal/chat"
	"github.com/lk2023060901/chat-relay/internal/network/acceptor"
	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	zlog "github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
	"github.com/lk2023060901/chat-relay/pkg/util/typeutil"
	zviper "github.com/lk2023060901/chat-relay/pkg/util/viper"
)

const (
	// EnvPrefix 为所有环境变量覆盖项的前缀，例如 CHATRELAY_PORT。
	EnvPrefix = "CHATRELAY"

	// DefaultHost 为未配置 host 时的监听地址。
	DefaultHost = "0.0.0.0"
	// DefaultWebSocketPath 为 WebSocket 接入的默认路径。
	DefaultWebSocketPath = "/ws"
)

var logFormats = typeutil.NewSet(zlog.FormatText, zlog.FormatConsole, zlog.FormatJSON)

// Config 是聊天服务的完整配置。
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	Session   SessionConfig   `mapstructure:"session"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`

	Log zlog.Config `mapstructure:"log"`
}

// SessionConfig 描述每条连接的限制。
type SessionConfig struct {
	SendQueueSize  int           `mapstructure:"send-queue-size"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
	MaxLineSize    int           `mapstructure:"max-line-size"`
	MaxConnections int           `mapstructure:"max-connections"`
	// LogLevel 单独提高连接相关日志的级别，为空时沿用 log.level。
	LogLevel string `mapstructure:"log-level"`
}

// WebSocketConfig 描述可选的 WebSocket 接入，Addr 为空时不启用。
type WebSocketConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// MetricsConfig 描述可选的指标与健康检查接口，Addr 为空时不启用。
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// setDefaults 为所有配置项注册默认值。
// 只有注册过的 key 才能被环境变量覆盖。
func setDefaults(cfg *zviper.Config) {
	cfg.SetDefault("host", DefaultHost)
	cfg.SetDefault("port", 0)

	cfg.SetDefault("session.send-queue-size", session.DefaultSendQueueSize)
	cfg.SetDefault("session.write-timeout", session.DefaultWriteTimeout)
	cfg.SetDefault("session.read-timeout", time.Duration(0))
	cfg.SetDefault("session.max-line-size", framer.DefaultMaxLineSize)
	cfg.SetDefault("session.max-connections", 0)
	cfg.SetDefault("session.log-level", "")

	cfg.SetDefault("websocket.addr", "")
	cfg.SetDefault("websocket.path", DefaultWebSocketPath)

	cfg.SetDefault("metrics.addr", "")

	cfg.SetDefault("log.level", "info")
	cfg.SetDefault("log.format", zlog.FormatText)
	cfg.SetDefault("log.stdout", true)
	cfg.SetDefault("log.file.rootpath", "")
	cfg.SetDefault("log.file.filename", "")
	cfg.SetDefault("log.rate-limit.enable", false)
	cfg.SetDefault("log.rate-limit.credit-per-second", 1.0)
	cfg.SetDefault("log.rate-limit.max-balance", 60.0)
}

// Validate 检查配置的合法性。
func (c *Config) Validate() error {
	if c.Port == 0 {
		return merr.WrapErrParameterMissing("port")
	}
	if c.Port < 1 || c.Port > 65535 {
		return merr.WrapErrParameterInvalidRange(1, 65535, c.Port, "port")
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Session.SendQueueSize < 0 {
		return merr.WrapErrParameterInvalidMsg("session.send-queue-size must not be negative, got %d", c.Session.SendQueueSize)
	}
	if c.Session.MaxLineSize < 0 {
		return merr.WrapErrParameterInvalidMsg("session.max-line-size must not be negative, got %d", c.Session.MaxLineSize)
	}
	if c.Session.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.Session.LogLevel); err != nil {
			return merr.WrapErrParameterInvalidMsg("session.log-level %q: %s", c.Session.LogLevel, err.Error())
		}
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = DefaultWebSocketPath
	}
	if c.WebSocket.Path[0] != '/' {
		return merr.WrapErrParameterInvalidMsg("websocket.path must start with '/', got %q", c.WebSocket.Path)
	}
	if c.Log.Format != "" && !logFormats.Contain(c.Log.Format) {
		return merr.WrapErrParameterInvalidMsg("log.format must be one of %v, got %q", typeutil.Sorted(logFormats), c.Log.Format)
	}
	return nil
}

// Addr 返回 TCP 监听地址。
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SessionOptions 返回创建会话使用的配置。
func (c *Config) SessionOptions() session.Config {
	return session.Config{
		SendQueueSize: c.Session.SendQueueSize,
		WriteTimeout:  c.Session.WriteTimeout,
	}
}

// HubOptions 返回创建 Hub 使用的可选项，需要在 Validate 之后调用。
func (c *Config) HubOptions() []chat.HubOption {
	var opts []chat.HubOption
	if level, err := zapcore.ParseLevel(c.Session.LogLevel); c.Session.LogLevel != "" && err == nil {
		opts = append(opts, chat.WithSessionLogLevel(level))
	}
	return opts
}

// AcceptorConfig 返回接入层使用的配置。
func (c *Config) AcceptorConfig() acceptor.Config {
	return acceptor.Config{
		ReadTimeout:    c.Session.ReadTimeout,
		MaxLineSize:    c.Session.MaxLineSize,
		MaxConnections: c.Session.MaxConnections,
		Path:           c.WebSocket.Path,
	}
}
