package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ServesRegistry(t *testing.T) {
	m := NewMetrics()
	m.RunTotal.WithLabelValues("deploy", "success").Inc()
	m.ApplyTotal.WithLabelValues("manifest", "success").Inc()

	srv := NewServer(":0", m)
	require.NoError(t, srv.Start())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "kubeship_run_total")
	assert.Contains(t, string(body), "kubeship_apply_total")
	assert.Contains(t, string(body), "kubeship_run_duration_seconds")
}

func TestServer_StopReleasesPort(t *testing.T) {
	m := NewMetrics()
	srv := NewServer(":0", m)
	require.NoError(t, srv.Start())
	addr := srv.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, err := http.Get("http://" + addr + "/metrics")
	assert.Error(t, err)
}
