// Package poll provides the bounded fixed-interval polling loop shared by
// rollout monitoring, LoadBalancer endpoint resolution, and health checking.
// There is no backoff and no jitter; cancellation is timeout expiry or
// context cancellation.
package poll

import (
	"context"
	"time"

	"github.com/kubeship/kubeship/internal/errors"
)

// Outcome classifies how a polling loop ended.
type Outcome int

// Polling outcomes.
const (
	Done Outcome = iota
	TimedOut
	Canceled
	Failed
)

// Probe is called once per interval. Returning done=true stops the loop
// successfully. A non-nil error aborts the loop immediately with outcome
// Failed.
type Probe func(ctx context.Context) (done bool, err error)

// Poller runs a Probe at a fixed interval until success, a hard timeout,
// or context cancellation.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    errors.Clock
}

// New creates a Poller with the real clock.
func New(interval, timeout time.Duration) Poller {
	return Poller{Interval: interval, Timeout: timeout, Clock: errors.RealClock{}}
}

// Until runs the probe loop. The probe is invoked immediately, then once
// per interval. Attempts reports how many probes ran.
func (p Poller) Until(ctx context.Context, probe Probe) (outcome Outcome, attempts int, err error) {
	start := p.Clock.Now()
	for {
		if ctx.Err() != nil {
			return Canceled, attempts, ctx.Err()
		}

		attempts++
		done, err := probe(ctx)
		if err != nil {
			return Failed, attempts, err
		}
		if done {
			return Done, attempts, nil
		}

		if p.Clock.Now().Sub(start)+p.Interval >= p.Timeout {
			return TimedOut, attempts, nil
		}
		p.Clock.Sleep(p.Interval)
	}
}
