// Package rollback implements the revision rollback state machine:
// Idle → Validated → Captured(prior) → UndoIssued → rollout wait →
// Captured(after) → Done.
package rollback

import (
	"context"
	"log/slog"
	"time"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/rollout"
	"github.com/kubeship/kubeship/pkg/model"
)

// State is the controller's position in the rollback pipeline.
type State string

// Rollback pipeline states.
const (
	StateIdle          State = "idle"
	StateValidated     State = "validated"
	StateCapturedPrior State = "captured_prior"
	StateUndoIssued    State = "undo_issued"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Controller validates revision history, captures before/after state,
// issues the undo, and confirms completion through the rollout monitor.
type Controller struct {
	client  cluster.Client
	monitor *rollout.Monitor
	metrics *observability.Metrics
	logger  *slog.Logger

	// Timeout bounds the post-undo rollout wait; zero means the monitor's
	// default.
	Timeout time.Duration

	state State
}

// NewController creates a Controller in StateIdle.
func NewController(client cluster.Client, monitor *rollout.Monitor, metrics *observability.Metrics) *Controller {
	return &Controller{
		client:  client,
		monitor: monitor,
		metrics: metrics,
		logger:  slog.Default().With("component", "rollback"),
		state:   StateIdle,
	}
}

// State returns the controller's current pipeline state.
func (c *Controller) State() State { return c.state }

// Run executes the rollback pipeline for the named deployment. The returned
// RollbackInfo is populated with the prior capture even on failure paths
// past the capture step.
func (c *Controller) Run(ctx context.Context, namespace, name string) (*model.RollbackInfo, error) {
	info, err := c.run(ctx, namespace, name)
	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = string(errors.CodeOf(err))
		}
		c.metrics.RollbackTotal.WithLabelValues(outcome).Inc()
	}
	return info, err
}

func (c *Controller) run(ctx context.Context, namespace, name string) (*model.RollbackInfo, error) {
	// Validated: the deployment must exist with more than one revision.
	// Nothing is mutated before this passes.
	dep, err := c.client.GetDeployment(ctx, namespace, name)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	if dep == nil {
		c.state = StateFailed
		return nil, errors.New(errors.ErrNotFound, "deployment %s/%s not found", namespace, name)
	}

	history, err := c.client.RevisionHistory(ctx, namespace, name)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	if len(history) <= 1 {
		c.state = StateFailed
		return nil, errors.New(errors.ErrNoRevisionHistory,
			"deployment %s/%s has no revision history to roll back to (revisions: %d)",
			namespace, name, len(history))
	}
	c.state = StateValidated

	// Captured(prior): recorded before mutating anything so the output diff
	// exists regardless of outcome.
	priorRevision, err := c.client.CurrentRevision(ctx, namespace, name)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	priorImage, err := c.client.CurrentImage(ctx, namespace, name)
	if err != nil {
		c.state = StateFailed
		return nil, err
	}
	c.state = StateCapturedPrior

	info := &model.RollbackInfo{
		PreviousRevision: priorRevision,
		PreviousImage:    priorImage,
	}

	c.logger.Info("issuing rollout undo",
		"namespace", namespace, "name", name,
		"current_revision", priorRevision, "current_image", priorImage,
	)

	// UndoIssued: any failure here is fatal before polling starts.
	if err := c.client.RolloutUndo(ctx, namespace, name); err != nil {
		c.state = StateFailed
		return info, errors.Wrap(errors.ErrRollbackIssueFailed, err,
			"rollout undo for %s/%s", namespace, name)
	}
	c.state = StateUndoIssued

	// A rollback is only successful once the prior ReplicaSet is fully
	// ready; an accepted undo that times out is still a failed run.
	outcome, err := c.monitor.AwaitReady(ctx, namespace, name, c.Timeout)
	if err != nil {
		c.state = StateFailed
		return info, err
	}

	// Captured(after): read regardless of the wait outcome so the result
	// reflects where the cluster actually landed.
	c.captureAfter(ctx, namespace, name, info)

	if outcome != rollout.Ready {
		c.state = StateFailed
		return info, errors.New(errors.ErrRolloutTimedOut,
			"rollback of %s/%s did not become ready in time", namespace, name)
	}

	c.state = StateDone
	c.logger.Info("rollback complete",
		"namespace", namespace, "name", name,
		"revision", info.Revision, "image", info.Image,
	)
	return info, nil
}

// captureAfter fills the post-undo revision, image, and replica counts.
// Best effort; read errors leave the corresponding fields zero.
func (c *Controller) captureAfter(ctx context.Context, namespace, name string, info *model.RollbackInfo) {
	if rev, err := c.client.CurrentRevision(ctx, namespace, name); err == nil {
		info.Revision = rev
	}
	if img, err := c.client.CurrentImage(ctx, namespace, name); err == nil {
		info.Image = img
	}
	if dep, err := c.client.GetDeployment(ctx, namespace, name); err == nil && dep != nil {
		info.ReadyReplicas = dep.Status.ReadyReplicas
		if dep.Spec.Replicas != nil {
			info.DesiredReplicas = *dep.Spec.Replicas
		}
	}
}
