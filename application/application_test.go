package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/chat-relay/internal/network/framer"
	"github.com/lk2023060901/chat-relay/internal/network/session"
	"github.com/lk2023060901/chat-relay/pkg/util/merr"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvConfigPath, "")
}

func TestLoadPropertiesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.properties", `
port=5555
session.send-queue-size=32
session.write-timeout=3s
session.max-connections=100
websocket.addr=127.0.0.1:5556
log.format=json
`)

	app := NewWithArgs([]string{"--config", path})
	require.NoError(t, app.loadConfig())

	cfg := app.Config()
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, 5555, cfg.Port)
	assert.Equal(t, "0.0.0.0:5555", cfg.Addr())
	assert.Equal(t, 32, cfg.Session.SendQueueSize)
	assert.Equal(t, 3*time.Second, cfg.Session.WriteTimeout)
	assert.Equal(t, 100, cfg.Session.MaxConnections)
	assert.Equal(t, framer.DefaultMaxLineSize, cfg.Session.MaxLineSize)
	assert.Equal(t, "127.0.0.1:5556", cfg.WebSocket.Addr)
	assert.Equal(t, DefaultWebSocketPath, cfg.WebSocket.Path)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, session.Config{SendQueueSize: 32, WriteTimeout: 3 * time.Second}, cfg.SessionOptions())
	ac := cfg.AcceptorConfig()
	assert.Equal(t, 100, ac.MaxConnections)
	assert.Equal(t, DefaultWebSocketPath, ac.Path)
	assert.Empty(t, cfg.HubOptions())
}

func TestSessionLogLevel(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.properties", "port=5555\nsession.log-level=warn\n")

	app := NewWithArgs([]string{"--config", path})
	require.NoError(t, app.loadConfig())
	assert.Equal(t, "warn", app.Config().Session.LogLevel)
	assert.Len(t, app.Config().HubOptions(), 1)
}

func TestLoadYAMLWithEqualsFlag(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "relay.yaml", `
host: 127.0.0.1
port: 7000
session:
  read-timeout: 1m
`)

	app := NewWithArgs([]string{"--verbose", "--config=" + path})
	require.NoError(t, app.loadConfig())
	assert.Equal(t, "127.0.0.1:7000", app.Config().Addr())
	assert.Equal(t, time.Minute, app.Config().Session.ReadTimeout)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.properties", "port=5555\nhost=127.0.0.1\n")
	t.Setenv(EnvConfigPath, path)
	t.Setenv("CHATRELAY_PORT", "6000")
	t.Setenv("CHATRELAY_SESSION_SEND_QUEUE_SIZE", "8")

	app := NewWithArgs(nil)
	require.NoError(t, app.loadConfig())
	assert.Equal(t, "127.0.0.1:6000", app.Config().Addr())
	assert.Equal(t, 8, app.Config().Session.SendQueueSize)
}

func TestFlagOverridesEnvPath(t *testing.T) {
	envPath := writeConfig(t, "env.properties", "port=1111\n")
	flagPath := writeConfig(t, "flag.properties", "port=2222\n")
	t.Setenv(EnvConfigPath, envPath)

	app := NewWithArgs([]string{"--config", flagPath})
	require.NoError(t, app.loadConfig())
	assert.Equal(t, 2222, app.Config().Port)
}

func TestMissingDefaultFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHATRELAY_PORT", "4000")

	app := NewWithArgs(nil)
	require.NoError(t, app.loadConfig())
	assert.Equal(t, "0.0.0.0:4000", app.Config().Addr())
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	t.Run("missing port", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "host=127.0.0.1\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterMissing)
	})

	t.Run("port out of range", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "port=70000\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	})

	t.Run("port not a number", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "port=abc\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.Error(t, err)
	})

	t.Run("bad log format", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "port=5555\nlog.format=xml\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	})

	t.Run("bad websocket path", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "port=5555\nwebsocket.path=ws\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	})

	t.Run("bad session log level", func(t *testing.T) {
		path := writeConfig(t, "config.properties", "port=5555\nsession.log-level=loud\n")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterInvalid)
	})

	t.Run("explicit file missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.properties")
		err := NewWithArgs([]string{"--config", path}).loadConfig()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("dangling flag", func(t *testing.T) {
		err := NewWithArgs([]string{"--config"}).loadConfig()
		assert.ErrorIs(t, err, merr.ErrParameterMissing)
	})
}

func TestRunInitializesLogging(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.properties", "port=5555\nlog.stdout=false\nlog.level=warn\n")

	app := NewWithArgs([]string{"--config", path})
	require.NoError(t, app.Run())
	assert.Equal(t, "warn", app.Config().Log.Level)
}
