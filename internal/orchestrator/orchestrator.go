// Package orchestrator composes rendering, applying, rollout monitoring,
// endpoint resolution, health checking, and rollback into one
// request-to-completion run. Exactly one OrchestrationResult is produced
// per run.
package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/diagnose"
	"github.com/kubeship/kubeship/internal/endpoint"
	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/health"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/render"
	"github.com/kubeship/kubeship/internal/rollback"
	"github.com/kubeship/kubeship/internal/rollout"
	"github.com/kubeship/kubeship/pkg/model"
)

// Orchestrator runs the full deploy or rollback pipeline. A single
// Orchestrator performs one run at a time; overlapping runs against the
// same deployment are the caller's responsibility to avoid.
type Orchestrator struct {
	client   cluster.Client
	renderer *render.Renderer
	resolver *endpoint.Resolver
	monitor  *rollout.Monitor
	checker  *health.Checker
	metrics  *observability.Metrics
	logger   *slog.Logger

	// RolloutTimeout bounds the rollout wait; zero uses the monitor default.
	RolloutTimeout time.Duration
	// HealthInterval is the health check poll interval.
	HealthInterval time.Duration

	Clock errors.Clock
}

// New wires an Orchestrator from its collaborators.
func New(client cluster.Client, resolver *endpoint.Resolver, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		client:         client,
		renderer:       render.New(),
		resolver:       resolver,
		monitor:        rollout.NewMonitor(client, metrics),
		checker:        health.NewChecker(metrics),
		metrics:        metrics,
		logger:         slog.Default().With("component", "orchestrator"),
		HealthInterval: 5 * time.Second,
		Clock:          errors.RealClock{},
	}
}

// Deploy runs the deploy pipeline and always returns a result record.
func (o *Orchestrator) Deploy(ctx context.Context, req model.DeployRequest) *model.OrchestrationResult {
	return o.run(ctx, "deploy", req, o.deploy)
}

// Rollback runs the rollback pipeline and always returns a result record.
func (o *Orchestrator) Rollback(ctx context.Context, req model.DeployRequest) *model.OrchestrationResult {
	return o.run(ctx, "rollback", req, o.rollbackRun)
}

// run wraps a pipeline with result assembly and run metrics.
func (o *Orchestrator) run(ctx context.Context, action string, req model.DeployRequest,
	pipeline func(ctx context.Context, req model.DeployRequest, result *model.OrchestrationResult) error) *model.OrchestrationResult {

	start := o.Clock.Now()
	result := &model.OrchestrationResult{
		Status: model.StatusSuccess,
		RunID:  uuid.NewString(),
	}

	req = req.WithDefaults()
	if err := pipeline(ctx, req, result); err != nil {
		result.Status = model.StatusFailure
		result.Reason = string(errors.CodeOf(err))
		result.ReasonMessage = err.Error()
		o.logger.Error("run failed", "action", action, "reason", result.Reason, "error", err)
	}

	if o.metrics != nil {
		o.metrics.RunDuration.Observe(o.Clock.Now().Sub(start).Seconds())
		o.metrics.RunTotal.WithLabelValues(action, string(result.Status)).Inc()
	}
	return result
}

// deploy is the main pipeline: render → apply → rollout wait → endpoint →
// ingress/route → health check.
func (o *Orchestrator) deploy(ctx context.Context, req model.DeployRequest, result *model.OrchestrationResult) error {
	if req.Name == "" {
		return errors.New(errors.ErrConfiguration, "deployment name is required")
	}
	if req.Image == "" {
		return errors.New(errors.ErrConfiguration, "image is required")
	}

	if err := o.client.EnsureNamespace(ctx, req.Namespace); err != nil {
		return errors.Wrap(errors.ErrClusterOperationFailed, err, "ensure namespace")
	}

	if err := o.apply(ctx, req); err != nil {
		return err
	}

	outcome, err := o.monitor.AwaitReady(ctx, req.Namespace, req.Name, o.RolloutTimeout)
	if err != nil {
		return err
	}
	if outcome != rollout.Ready {
		result.Diagnostics = diagnose.Collect(ctx, o.client, req.Namespace, req.Name)
		return errors.New(errors.ErrRolloutTimedOut,
			"deployment %s/%s did not become ready in time", req.Namespace, req.Name)
	}

	o.captureDeployment(ctx, req, result)

	res, err := o.resolver.Resolve(ctx, req.ServiceType, req.Namespace, req.Name)
	if err != nil {
		return errors.Wrap(errors.ErrClusterOperationFailed, err, "resolve endpoint")
	}
	if res.Resolved {
		result.ServiceEndpoint = res.Endpoint
		result.ServiceIP = res.Endpoint.Address
		result.ApplicationURL = res.URL
	}

	// The Ingress/Route URL, when present, overrides the service URL as
	// the final application URL.
	exposed, err := o.resolver.ExposeURL(ctx, req)
	if err != nil {
		return errors.Wrap(errors.ErrClusterOperationFailed, err, "expose ingress/route")
	}
	if exposed != "" {
		result.ApplicationURL = exposed
	}

	return o.healthCheck(ctx, req, result)
}

// apply renders (template path) or synthesizes (direct path) the manifests
// and submits them. A template is authoritative for the kinds it defines,
// but a companion Service is still synthesized when the template carries
// none: rollout convergence and endpoint resolution both need one.
func (o *Orchestrator) apply(ctx context.Context, req model.DeployRequest) error {
	start := o.Clock.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ApplyDuration.Observe(o.Clock.Now().Sub(start).Seconds())
		}
	}()

	if req.TemplatePath != "" {
		templateText, err := o.renderer.LoadTemplate(req.TemplatePath)
		if err != nil {
			return err
		}

		ingressHost, err := o.resolver.IngressHost(ctx, req)
		if err != nil {
			return errors.Wrap(errors.ErrClusterOperationFailed, err, "resolve ingress host")
		}

		rendered, err := o.renderer.Render(req, templateText, ingressHost)
		if err != nil {
			return errors.Wrap(errors.ErrConfiguration, err, "render template")
		}

		// The rendered manifest round-trips through a temp file: written
		// once here, read back once for the apply.
		path, cleanup, err := render.WriteTemp(rendered)
		if err != nil {
			return errors.Wrap(errors.ErrConfiguration, err, "write rendered manifest")
		}
		defer cleanup()
		o.logger.Debug("rendered manifest written", "path", path)

		manifest, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(errors.ErrConfiguration, err, "read rendered manifest")
		}

		err = o.client.ApplyManifest(ctx, manifest)
		o.countApply("manifest", err)
		if err != nil {
			return errors.Wrap(errors.ErrClusterOperationFailed, err, "apply manifest")
		}

		if !cluster.ManifestHasKind(manifest, "Service") {
			if err := o.applyService(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}

	dep, err := o.renderer.Synthesize(req)
	if err != nil {
		return errors.Wrap(errors.ErrConfiguration, err, "synthesize deployment")
	}
	err = o.client.ApplyDeployment(ctx, dep)
	o.countApply("deployment", err)
	if err != nil {
		return errors.Wrap(errors.ErrClusterOperationFailed, err, "apply deployment")
	}

	return o.applyService(ctx, req)
}

// applyService synthesizes and submits the companion Service.
func (o *Orchestrator) applyService(ctx context.Context, req model.DeployRequest) error {
	svc := o.renderer.SynthesizeService(req)
	err := o.client.ApplyService(ctx, svc)
	o.countApply("service", err)
	if err != nil {
		// No compensating delete of the deployment; partial state stays.
		return errors.Wrap(errors.ErrClusterOperationFailed, err, "apply service")
	}
	return nil
}

// countApply records one apply attempt per kind.
func (o *Orchestrator) countApply(kind string, err error) {
	if o.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	o.metrics.ApplyTotal.WithLabelValues(kind, status).Inc()
}

// healthCheck runs the optional HTTP health check against the application
// URL. A missing path skips the check; a missing URL records it as skipped.
func (o *Orchestrator) healthCheck(ctx context.Context, req model.DeployRequest, result *model.OrchestrationResult) error {
	if req.HealthCheckPath == "" {
		return nil
	}
	if result.ApplicationURL == "" {
		o.logger.Warn("health check requested but no URL resolved; skipping")
		result.Health = &model.HealthResult{Outcome: model.HealthSkipped}
		return nil
	}

	timeout := time.Duration(req.HealthCheckTimeout) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	hr := o.checker.Check(ctx, result.ApplicationURL, req.HealthCheckPath, timeout, o.HealthInterval)
	result.Health = &hr
	if hr.Outcome == model.HealthTimedOut {
		result.Diagnostics = diagnose.Collect(ctx, o.client, req.Namespace, req.Name)
		return errors.New(errors.ErrHealthCheckTimedOut,
			"health check of %s did not succeed within %s", result.ApplicationURL, timeout)
	}
	return nil
}

// rollbackRun delegates to the rollback controller and maps its capture
// into the result record.
func (o *Orchestrator) rollbackRun(ctx context.Context, req model.DeployRequest, result *model.OrchestrationResult) error {
	if req.Name == "" {
		return errors.New(errors.ErrConfiguration, "deployment name is required")
	}

	controller := rollback.NewController(o.client, o.monitor, o.metrics)
	controller.Timeout = o.RolloutTimeout

	info, err := controller.Run(ctx, req.Namespace, req.Name)
	result.Rollback = info
	if err != nil {
		if errors.CodeOf(err) == errors.ErrRolloutTimedOut {
			result.Diagnostics = diagnose.Collect(ctx, o.client, req.Namespace, req.Name)
		}
		return err
	}

	o.captureDeployment(ctx, req, result)
	return nil
}

// captureDeployment snapshots the live deployment into the result record.
func (o *Orchestrator) captureDeployment(ctx context.Context, req model.DeployRequest, result *model.OrchestrationResult) {
	dep, err := o.client.GetDeployment(ctx, req.Namespace, req.Name)
	if err != nil || dep == nil {
		return
	}

	info := &model.DeploymentInfo{
		Name:              dep.Name,
		Namespace:         dep.Namespace,
		Replicas:          dep.Status.Replicas,
		ReadyReplicas:     dep.Status.ReadyReplicas,
		UpdatedReplicas:   dep.Status.UpdatedReplicas,
		AvailableReplicas: dep.Status.AvailableReplicas,
	}
	if containers := dep.Spec.Template.Spec.Containers; len(containers) > 0 {
		info.Image = containers[0].Image
	}
	if rev, err := o.client.CurrentRevision(ctx, req.Namespace, req.Name); err == nil {
		info.Revision = rev
	}
	result.Deployment = info
}
