package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeship/kubeship/pkg/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func testChecker() *Checker {
	c := NewChecker(nil)
	c.Clock = &fakeClock{now: time.Unix(1700000000, 0)}
	return c
}

func TestCheck_HealthyImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/healthz", 30*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthHealthy, res.Outcome)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
}

func TestCheck_HealthyAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/healthz", 30*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthHealthy, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
}

func TestCheck_HealthyAtRoot(t *testing.T) {
	// 503s, then a 404 at the path while the root answers 200: the one-shot
	// root fallback reports partial health.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/healthz", 30*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthHealthyAtRoot, res.Outcome)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, srv.URL+"/", res.URL)
}

func TestCheck_NoRootFallbackAtRootPath(t *testing.T) {
	// A 404 at the root path itself must not recurse into a fallback.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/", 20*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthTimedOut, res.Outcome)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestCheck_RedirectCountsAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/healthz", 30*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthHealthy, res.Outcome)
	assert.Equal(t, http.StatusFound, res.StatusCode)
}

func TestCheck_TimedOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL, "/healthz", 30*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthTimedOut, res.Outcome)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, 6, res.Attempts)
}

func TestCheck_ConnectionRefusedKeepsPolling(t *testing.T) {
	// Nothing listens on the target; network errors keep the loop polling
	// until the ceiling rather than aborting.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := testChecker().Check(context.Background(), url, "/healthz", 20*time.Second, 5*time.Second)

	assert.Equal(t, model.HealthTimedOut, res.Outcome)
	assert.Zero(t, res.StatusCode)
	assert.Equal(t, 4, res.Attempts)
}

func TestCheck_PathNormalization(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := testChecker().Check(context.Background(), srv.URL+"/", "healthz", 30*time.Second, 5*time.Second)

	require.Equal(t, model.HealthHealthy, res.Outcome)
	assert.Equal(t, "/healthz", seen)
}
