package application

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	zlog "github.com/lk2023060901/chat-relay/pkg/log"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
	zviper "github.com/lk2023060901/chat-relay/pkg/util/viper"
)

const (
	// DefaultConfigPath 为未指定配置文件时使用的路径，文件不存在时只使用默认值与环境变量。
	DefaultConfigPath = "./config.properties"
	// EnvConfigPath 为指定配置文件路径的环境变量。
	EnvConfigPath = EnvPrefix + "_CONFIG_FILE_PATH"
)

// Application 是聊天服务进程的运行时容器，负责加载配置并初始化全局日志。
type Application struct {
	args []string
	cfg  *Config
}

// New 创建一个使用 os.Args 的 Application。
func New() *Application {
	return NewWithArgs(os.Args[1:])
}

// NewWithArgs 创建一个使用指定命令行参数的 Application，args 不包含程序名。
func NewWithArgs(args []string) *Application {
	return &Application{args: args}
}

// Run 加载并校验配置，然后初始化全局日志。
//
// 配置文件路径按以下优先级确定（后者覆盖前者）：
//  1. 默认：./config.properties
//  2. 环境变量：CHATRELAY_CONFIG_FILE_PATH
//  3. 命令行：--config <path> 或 --config=<path>
//
// 配置项还可以被 CHATRELAY_ 前缀的环境变量覆盖，例如 CHATRELAY_PORT。
func (a *Application) Run() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.initLogging(); err != nil {
		return err
	}

	zlog.Info("configuration loaded",
		zap.String("addr", a.cfg.Addr()),
		zap.String("websocket", a.cfg.WebSocket.Addr),
		zap.String("metrics", a.cfg.Metrics.Addr),
		zap.Int("sendQueueSize", a.cfg.Session.SendQueueSize),
		zap.Int("maxConnections", a.cfg.Session.MaxConnections))
	return nil
}

// Config 返回已加载的配置，Run 成功之前为 nil。
func (a *Application) Config() *Config {
	return a.cfg
}

// configPath 解析配置文件路径，explicit 表示路径来自环境变量或命令行。
func (a *Application) configPath() (path string, explicit bool, err error) {
	path = DefaultConfigPath

	if envPath := strings.TrimSpace(os.Getenv(EnvConfigPath)); envPath != "" {
		path, explicit = envPath, true
	}

	args := a.args
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return "", false, merr.WrapErrParameterMissing("--config", "missing value after --config")
			}
			path, explicit = args[i+1], true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				path, explicit = val, true
			}
			continue
		}
	}
	return path, explicit, nil
}

// loadConfig 读取配置文件与环境变量，并反序列化为 Config。
func (a *Application) loadConfig() error {
	path, explicit, err := a.configPath()
	if err != nil {
		return err
	}

	v := zviper.New()
	setDefaults(v)
	v.AutomaticEnv(EnvPrefix)

	switch _, statErr := os.Stat(path); {
	case statErr == nil:
		if err := v.LoadFile(path); err != nil {
			return errors.Wrapf(err, "load config file %q", path)
		}
	case explicit || !errors.Is(statErr, os.ErrNotExist):
		return errors.Wrapf(statErr, "load config file %q", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	return nil
}

// initLogging 使用 log 配置替换全局日志。
func (a *Application) initLogging() error {
	logCfg := a.cfg.Log
	logger, props, err := zlog.InitLogger(&logCfg)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}
