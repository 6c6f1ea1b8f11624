package viper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionConfig struct {
	SendQueueSize int           `mapstructure:"send-queue-size"`
	WriteTimeout  time.Duration `mapstructure:"write-timeout"`
}

type testConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Session sessionConfig `mapstructure:"session"`
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadProperties(t *testing.T) {
	path := writeFile(t, "config.properties", "host=127.0.0.1\nport=12345\nsession.send-queue-size=8\nsession.write-timeout=3s\n")

	c := New()
	require.NoError(t, c.LoadFile(path))

	var cfg testConfig
	require.NoError(t, c.Unmarshal(&cfg))
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 12345, cfg.Port)
	assert.Equal(t, 8, cfg.Session.SendQueueSize)
	assert.Equal(t, 3*time.Second, cfg.Session.WriteTimeout)

	var sess sessionConfig
	require.NoError(t, c.UnmarshalKey("session", &sess))
	assert.Equal(t, 8, sess.SendQueueSize)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "host: 0.0.0.0\nport: 9000\nsession:\n  send-queue-size: 4\n")

	c := New()
	require.NoError(t, c.LoadFile(path))
	assert.True(t, c.IsSet("port"))
	assert.Equal(t, "0.0.0.0", c.GetString("host"))

	var cfg testConfig
	require.NoError(t, c.Unmarshal(&cfg))
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 4, cfg.Session.SendQueueSize)
}

func TestLoadMissingFile(t *testing.T) {
	c := New()
	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.properties")))
}

func TestDefaultsAndEnv(t *testing.T) {
	t.Setenv("VIPERTEST_PORT", "4242")
	t.Setenv("VIPERTEST_SESSION_SEND_QUEUE_SIZE", "16")

	c := New()
	c.SetDefault("host", "0.0.0.0")
	c.SetDefault("port", 0)
	c.SetDefault("session.send-queue-size", 256)
	c.SetDefault("session.write-timeout", "10s")
	c.AutomaticEnv("VIPERTEST")

	var cfg testConfig
	require.NoError(t, c.Unmarshal(&cfg))
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 4242, cfg.Port)
	assert.Equal(t, 16, cfg.Session.SendQueueSize)
	assert.Equal(t, 10*time.Second, cfg.Session.WriteTimeout)
}
