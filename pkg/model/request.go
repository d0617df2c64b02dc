package model

// ClusterType selects the cluster flavor a run targets.
type ClusterType string

// Supported cluster flavors.
const (
	ClusterKubernetes ClusterType = "kubernetes"
	ClusterOpenShift  ClusterType = "openshift"
)

// ServiceType mirrors the Kubernetes Service types the orchestrator exposes.
type ServiceType string

// Supported service types.
const (
	ServiceClusterIP    ServiceType = "ClusterIP"
	ServiceNodePort     ServiceType = "NodePort"
	ServiceLoadBalancer ServiceType = "LoadBalancer"
)

// EnvVar is a single ordered name/value pair for the container environment.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ProbeConfig controls liveness/readiness probe generation.
type ProbeConfig struct {
	Enabled       bool   `json:"enabled"`
	LivenessPath  string `json:"liveness_path,omitempty"`
	ReadinessPath string `json:"readiness_path,omitempty"`
}

// IngressConfig controls Ingress (Kubernetes) exposure.
type IngressConfig struct {
	Host       string `json:"host,omitempty"`
	TLS        bool   `json:"tls"`
	AutoDetect bool   `json:"auto_detect"`
	SecretName string `json:"secret_name,omitempty"`
}

// RouteConfig controls Route (OpenShift) exposure.
type RouteConfig struct {
	Create   bool   `json:"create"`
	Hostname string `json:"hostname,omitempty"`
}

// Resources holds the container resource quantities as Kubernetes
// quantity strings ("500m", "256Mi").
type Resources struct {
	CPULimit      string `json:"cpu_limit,omitempty"`
	MemoryLimit   string `json:"memory_limit,omitempty"`
	CPURequest    string `json:"cpu_request,omitempty"`
	MemoryRequest string `json:"memory_request,omitempty"`
}

// DeployRequest is the immutable input of one orchestration run. It is
// constructed once from external configuration and never mutated.
type DeployRequest struct {
	Image         string      `json:"image"`
	Namespace     string      `json:"namespace"`
	Name          string      `json:"name"`
	ContainerName string      `json:"container_name"`
	Port          int32       `json:"port"`
	Replicas      int32       `json:"replicas"`
	ServiceType   ServiceType `json:"service_type"`
	ClusterType   ClusterType `json:"cluster_type"`

	Resources Resources `json:"resources"`
	Env       []EnvVar  `json:"env,omitempty"`

	Probes  ProbeConfig   `json:"probes"`
	Ingress IngressConfig `json:"ingress"`
	Route   RouteConfig   `json:"route"`

	PullSecretName string `json:"pull_secret_name,omitempty"`
	TemplatePath   string `json:"template_path,omitempty"`
	Version        string `json:"version,omitempty"`

	HealthCheckPath    string `json:"health_check_path,omitempty"`
	HealthCheckTimeout int    `json:"health_check_timeout_seconds,omitempty"`
}

// WithDefaults returns a copy of the request with empty fields set to
// their documented defaults. Name is never defaulted; an empty name is a
// configuration error caught by validation.
func (r DeployRequest) WithDefaults() DeployRequest {
	out := r
	if out.Namespace == "" {
		out.Namespace = "default"
	}
	if out.ContainerName == "" {
		out.ContainerName = out.Name
	}
	if out.Port == 0 {
		out.Port = 8080
	}
	if out.Replicas == 0 {
		out.Replicas = 1
	}
	if out.ServiceType == "" {
		out.ServiceType = ServiceClusterIP
	}
	if out.ClusterType == "" {
		out.ClusterType = ClusterKubernetes
	}
	return out
}
