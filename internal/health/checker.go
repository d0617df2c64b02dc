// Package health polls an HTTP endpoint until it answers with a success
// status or the bounded timeout expires.
package health

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/poll"
	"github.com/kubeship/kubeship/pkg/model"
)

// Per-probe bounds: a slow connect must not eat the whole outer timeout.
const (
	connectTimeout = 5 * time.Second
	probeTimeout   = 10 * time.Second
)

// successCodes are accepted at the configured path.
var successCodes = map[int]bool{200: true, 204: true, 301: true, 302: true}

// rootSuccessCodes are accepted by the one-shot root fallback probe.
var rootSuccessCodes = map[int]bool{200: true, 301: true, 302: true}

// Checker polls an HTTP endpoint with a bounded timeout and fixed interval.
type Checker struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger

	Clock errors.Clock
}

// NewChecker creates a Checker with bounded per-probe timeouts. Redirects
// are not followed; 301/302 count as success directly.
func NewChecker(metrics *observability.Metrics) *Checker {
	return &Checker{
		httpClient: &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		metrics: metrics,
		logger:  slog.Default().With("component", "health"),
		Clock:   errors.RealClock{},
	}
}

// Check polls baseURL+path until a success code arrives or timeout elapses.
// A 404 at a non-root path triggers exactly one additional root probe per
// poll, not a restart of the loop. Network errors and HTTP error statuses
// both keep the loop polling; they are tracked as distinct probe classes.
func (c *Checker) Check(ctx context.Context, baseURL, path string, timeout, interval time.Duration) model.HealthResult {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := strings.TrimSuffix(baseURL, "/") + path
	root := strings.TrimSuffix(baseURL, "/") + "/"

	result := model.HealthResult{Outcome: model.HealthTimedOut, URL: target}
	start := c.Clock.Now()

	poller := poll.Poller{Interval: interval, Timeout: timeout, Clock: c.Clock}
	outcome, attempts, _ := poller.Until(ctx, func(ctx context.Context) (bool, error) {
		status, err := c.probe(ctx, target)
		if err != nil {
			// Non-response: connection refused or probe timeout. Coded
			// distinctly from an HTTP error status; both keep polling.
			c.countProbe("network_error")
			c.logger.Debug("health probe failed", "url", target, "error", err)
			return false, nil
		}

		if successCodes[status] {
			c.countProbe("success")
			result.Outcome = model.HealthHealthy
			result.StatusCode = status
			return true, nil
		}

		if status == http.StatusNotFound && path != "/" {
			rootStatus, rootErr := c.probe(ctx, root)
			if rootErr == nil && rootSuccessCodes[rootStatus] {
				c.countProbe("root_fallback")
				result.Outcome = model.HealthHealthyAtRoot
				result.StatusCode = rootStatus
				result.URL = root
				return true, nil
			}
		}

		c.countProbe("http_error")
		result.StatusCode = status
		return false, nil
	})

	result.Attempts = attempts
	if c.metrics != nil {
		c.metrics.HealthWaitDuration.Observe(c.Clock.Now().Sub(start).Seconds())
	}
	if outcome != poll.Done {
		c.logger.Warn("health check timed out",
			"url", target, "timeout", timeout, "attempts", attempts)
		result.Outcome = model.HealthTimedOut
	}
	return result
}

// probe issues one bounded GET and returns the status code.
func (c *Checker) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Checker) countProbe(class string) {
	if c.metrics != nil {
		c.metrics.HealthProbesTotal.WithLabelValues(class).Inc()
	}
}
