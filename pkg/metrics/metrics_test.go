package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestRegisterAndExpose(t *testing.T) {
	registry := prometheus.NewRegistry()
	Register(registry)
	assert.Equal(t, prometheus.Registerer(registry), GetRegisterer())

	Commands.WithLabelValues("broadcast").Inc()
	RegisteredUsers.Set(2)
	assert.Equal(t, float64(1), testutil.ToFloat64(Commands.WithLabelValues("broadcast")))

	srv := httptest.NewServer(NewHandler(registry, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatrelay_commands_total{type="broadcast"} 1`)
	assert.Contains(t, string(body), "chatrelay_registered_users 2")
}

func TestHealthz(t *testing.T) {
	var healthErr atomic.Error
	srv := httptest.NewServer(NewHandler(prometheus.NewRegistry(), healthErr.Load))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	healthErr.Store(errors.New("stopping"))
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
