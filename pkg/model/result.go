package model

import "strconv"

// RunStatus is the terminal classification of one orchestration run.
type RunStatus string

// Terminal run statuses.
const (
	StatusSuccess RunStatus = "success"
	StatusFailure RunStatus = "failure"
)

// HealthOutcome classifies the result of the post-deploy HTTP health check.
type HealthOutcome string

// Health check classifications.
const (
	HealthHealthy       HealthOutcome = "healthy"
	HealthHealthyAtRoot HealthOutcome = "healthy_at_root"
	HealthTimedOut      HealthOutcome = "timed_out"
	HealthSkipped       HealthOutcome = "skipped"
)

// HealthResult records the outcome of the health check phase.
type HealthResult struct {
	Outcome    HealthOutcome `json:"outcome"`
	URL        string        `json:"url,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
}

// ServiceEndpoint is the resolved reachable address of the deployed service.
type ServiceEndpoint struct {
	Address string `json:"address,omitempty"`
	Port    int32  `json:"port,omitempty"`
	// Internal is set when the address is a cluster-internal fallback
	// (ClusterIP DNS name or a node InternalIP) that may not be
	// reachable from outside the cluster.
	Internal bool `json:"internal,omitempty"`
}

// String renders the endpoint as "address:port", or "" when unresolved.
func (e ServiceEndpoint) String() string {
	if e.Address == "" {
		return ""
	}
	if e.Port == 0 {
		return e.Address
	}
	return e.Address + ":" + strconv.Itoa(int(e.Port))
}

// RevisionInfo describes one entry of a deployment's ReplicaSet history.
type RevisionInfo struct {
	Revision int64  `json:"revision"`
	Image    string `json:"image,omitempty"`
}

// RollbackInfo is attached to the result of a rollback run.
type RollbackInfo struct {
	PreviousRevision int64  `json:"previous_revision"`
	PreviousImage    string `json:"previous_image"`
	Revision         int64  `json:"rollback_revision"`
	Image            string `json:"rollback_image"`
	ReadyReplicas    int32  `json:"ready_replicas"`
	DesiredReplicas  int32  `json:"desired_replicas"`
}

// DeploymentInfo is the point-in-time deployment state serialized into the
// result record.
type DeploymentInfo struct {
	Name              string `json:"name"`
	Namespace         string `json:"namespace"`
	Image             string `json:"image"`
	Revision          int64  `json:"revision"`
	Replicas          int32  `json:"replicas"`
	ReadyReplicas     int32  `json:"ready_replicas"`
	UpdatedReplicas   int32  `json:"updated_replicas"`
	AvailableReplicas int32  `json:"available_replicas"`
}

// PodDiagnostic captures best-effort failure diagnostics for one pod.
type PodDiagnostic struct {
	Name   string   `json:"name"`
	Phase  string   `json:"phase"`
	Events []string `json:"events,omitempty"`
	Logs   string   `json:"logs,omitempty"`
}

// OrchestrationResult is the single output record of a run. Exactly one is
// produced per invocation; the presentation layer serializes it and maps a
// failure status to a non-zero exit.
type OrchestrationResult struct {
	Status RunStatus `json:"status"`
	RunID  string    `json:"run_id"`

	Reason        string `json:"reason,omitempty"`
	ReasonMessage string `json:"reason_message,omitempty"`

	ApplicationURL  string          `json:"application_url,omitempty"`
	ServiceEndpoint ServiceEndpoint `json:"service_endpoint,omitempty"`
	ServiceIP       string          `json:"service_ip,omitempty"`

	Health     *HealthResult   `json:"health,omitempty"`
	Deployment *DeploymentInfo `json:"deployment,omitempty"`
	Rollback   *RollbackInfo   `json:"rollback,omitempty"`

	Diagnostics []PodDiagnostic `json:"diagnostics,omitempty"`
}
