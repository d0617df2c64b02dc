// Package rollout waits for deployment convergence. It is the single
// suspension point shared by the deploy and rollback flows.
package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/poll"
)

// Outcome classifies the rollout wait.
type Outcome string

// Rollout outcomes. TimedOut is authoritative: a later best-effort check
// finding the deployment running does not upgrade the classification.
const (
	Ready    Outcome = "ready"
	TimedOut Outcome = "timed_out"
)

// DefaultTimeout bounds the rollout wait when the caller passes zero.
const DefaultTimeout = 5 * time.Minute

// Monitor polls deployment readiness with a bounded timeout.
type Monitor struct {
	client  cluster.Client
	metrics *observability.Metrics
	logger  *slog.Logger

	Interval time.Duration
	Clock    errors.Clock
}

// NewMonitor creates a Monitor polling at the given interval.
func NewMonitor(client cluster.Client, metrics *observability.Metrics) *Monitor {
	return &Monitor{
		client:   client,
		metrics:  metrics,
		logger:   slog.Default().With("component", "rollout"),
		Interval: 5 * time.Second,
		Clock:    errors.RealClock{},
	}
}

// AwaitReady blocks until the deployment converges or the timeout expires.
// A deployment reporting ProgressDeadlineExceeded fails immediately.
func (m *Monitor) AwaitReady(ctx context.Context, namespace, name string, timeout time.Duration) (Outcome, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := m.Clock.Now()

	poller := poll.Poller{Interval: m.Interval, Timeout: timeout, Clock: m.Clock}
	outcome, attempts, err := poller.Until(ctx, func(ctx context.Context) (bool, error) {
		dep, err := m.client.GetDeployment(ctx, namespace, name)
		if err != nil {
			return false, err
		}
		if dep == nil {
			return false, errors.New(errors.ErrNotFound, "deployment %s/%s not found", namespace, name)
		}
		if reason, failed := progressFailed(dep); failed {
			return false, errors.New(errors.ErrClusterOperationFailed,
				"deployment %s/%s cannot progress: %s", namespace, name, reason)
		}
		return deploymentReady(dep), nil
	})

	if m.metrics != nil {
		m.metrics.RolloutWaitDuration.Observe(m.Clock.Now().Sub(start).Seconds())
	}
	if err != nil {
		if m.metrics != nil {
			m.metrics.RolloutOutcomeTotal.WithLabelValues("error").Inc()
		}
		return TimedOut, err
	}
	if outcome != poll.Done {
		m.logger.Warn("rollout wait timed out",
			"namespace", namespace, "name", name, "timeout", timeout, "attempts", attempts)
		if m.metrics != nil {
			m.metrics.RolloutOutcomeTotal.WithLabelValues(string(TimedOut)).Inc()
		}
		return TimedOut, nil
	}

	m.logger.Info("rollout complete", "namespace", namespace, "name", name, "attempts", attempts)
	if m.metrics != nil {
		m.metrics.RolloutOutcomeTotal.WithLabelValues(string(Ready)).Inc()
	}
	return Ready, nil
}

// deploymentReady mirrors the convergence rules of kubectl rollout status:
// the controller has observed the current generation, every replica is
// updated and available, and no surplus old replicas remain.
func deploymentReady(dep *appsv1.Deployment) bool {
	if dep.Generation > dep.Status.ObservedGeneration {
		return false
	}
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	if dep.Status.UpdatedReplicas < desired {
		return false
	}
	if dep.Status.Replicas > dep.Status.UpdatedReplicas {
		return false
	}
	return dep.Status.AvailableReplicas >= dep.Status.UpdatedReplicas
}

// progressFailed reports whether the deployment controller has given up.
func progressFailed(dep *appsv1.Deployment) (string, bool) {
	for _, cond := range dep.Status.Conditions {
		if cond.Type == appsv1.DeploymentProgressing &&
			cond.Status == corev1.ConditionFalse &&
			cond.Reason == "ProgressDeadlineExceeded" {
			return fmt.Sprintf("%s: %s", cond.Reason, cond.Message), true
		}
	}
	return "", false
}
