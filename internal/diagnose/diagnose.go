// Package diagnose gathers best-effort failure diagnostics (pod phases,
// events, log tails) attached to a failed result record. Collection errors
// are logged, never propagated; diagnostics must not change an outcome.
package diagnose

import (
	"context"
	"log/slog"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/pkg/model"
)

// logTailLines bounds how much log is pulled per pod.
const logTailLines = 50

// Collect gathers diagnostics for every pod of the deployment.
func Collect(ctx context.Context, client cluster.Client, namespace, name string) []model.PodDiagnostic {
	logger := slog.Default().With("component", "diagnose")

	pods, err := client.PodsForDeployment(ctx, namespace, name)
	if err != nil {
		logger.Warn("failed to list pods for diagnostics", "error", err)
		return nil
	}

	diags := make([]model.PodDiagnostic, 0, len(pods))
	for _, pod := range pods {
		diag := model.PodDiagnostic{
			Name:  pod.Name,
			Phase: string(pod.Status.Phase),
		}

		if events, err := client.EventsFor(ctx, namespace, pod.Name); err == nil {
			diag.Events = events
		} else {
			logger.Debug("failed to fetch events", "pod", pod.Name, "error", err)
		}

		if logs, err := client.LogsFor(ctx, namespace, pod.Name, logTailLines); err == nil {
			diag.Logs = logs
		} else {
			logger.Debug("failed to fetch logs", "pod", pod.Name, "error", err)
		}

		diags = append(diags, diag)
	}
	return diags
}
