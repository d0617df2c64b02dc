package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kubeship/kubeship/pkg/model"
)

// Config holds all orchestrator configuration values. Flag parsing in cmd/
// overrides individual fields after Load.
type Config struct {
	Action      string
	ClusterType string
	Kubeconfig  string

	// MetricsAddr enables the Prometheus endpoint when non-empty.
	MetricsAddr string

	Image         string
	Namespace     string
	Name          string
	ContainerName string
	Port          int
	Replicas      int
	ServiceType   string
	Version       string

	CPULimit      string
	MemoryLimit   string
	CPURequest    string
	MemoryRequest string

	// EnvVars is the raw newline-delimited KEY=VALUE block.
	EnvVars string

	EnableProbes  bool
	LivenessPath  string
	ReadinessPath string

	IngressHost string
	IngressTLS  bool
	AutoIngress bool

	CreateRoute   bool
	RouteHostname string

	PullSecretName string
	TemplatePath   string

	HealthCheckPath     string
	HealthCheckTimeout  time.Duration
	HealthCheckInterval time.Duration
	RolloutTimeout      time.Duration
	EndpointInterval    time.Duration
	EndpointTimeout     time.Duration

	// NodePort cloud lookups (optional; strategy is skipped when unset).
	CloudProvider  string
	AWSRegion      string
	AWSAccessKeyID string
	AWSSecretKey   string
	DOToken        string
	HetznerToken   string
}

// Load reads configuration from KUBESHIP_* environment variables and
// returns a Config with defaults applied for any unset values.
func Load() Config {
	return Config{
		Action:      envOrDefault("KUBESHIP_ACTION", "deploy"),
		ClusterType: envOrDefault("KUBESHIP_CLUSTER_TYPE", "kubernetes"),
		Kubeconfig:  os.Getenv("KUBECONFIG"),

		MetricsAddr: os.Getenv("KUBESHIP_METRICS_ADDR"),

		Image:         os.Getenv("KUBESHIP_IMAGE"),
		Namespace:     envOrDefault("KUBESHIP_NAMESPACE", "default"),
		Name:          os.Getenv("KUBESHIP_NAME"),
		ContainerName: os.Getenv("KUBESHIP_CONTAINER_NAME"),
		Port:          parseInt("KUBESHIP_PORT", 8080),
		Replicas:      parseInt("KUBESHIP_REPLICAS", 1),
		ServiceType:   envOrDefault("KUBESHIP_SERVICE_TYPE", "ClusterIP"),
		Version:       os.Getenv("KUBESHIP_VERSION"),

		CPULimit:      envOrDefault("KUBESHIP_CPU_LIMIT", "500m"),
		MemoryLimit:   envOrDefault("KUBESHIP_MEMORY_LIMIT", "512Mi"),
		CPURequest:    envOrDefault("KUBESHIP_CPU_REQUEST", "100m"),
		MemoryRequest: envOrDefault("KUBESHIP_MEMORY_REQUEST", "128Mi"),

		EnvVars: os.Getenv("KUBESHIP_ENV_VARS"),

		EnableProbes:  parseBool("KUBESHIP_ENABLE_PROBES", false),
		LivenessPath:  envOrDefault("KUBESHIP_LIVENESS_PATH", "/healthz"),
		ReadinessPath: envOrDefault("KUBESHIP_READINESS_PATH", "/readyz"),

		IngressHost: os.Getenv("KUBESHIP_INGRESS_HOST"),
		IngressTLS:  parseBool("KUBESHIP_INGRESS_TLS", false),
		AutoIngress: parseBool("KUBESHIP_AUTO_INGRESS", false),

		CreateRoute:   parseBool("KUBESHIP_CREATE_ROUTE", false),
		RouteHostname: os.Getenv("KUBESHIP_ROUTE_HOSTNAME"),

		PullSecretName: os.Getenv("KUBESHIP_PULL_SECRET_NAME"),
		TemplatePath:   os.Getenv("KUBESHIP_TEMPLATE"),

		HealthCheckPath:     os.Getenv("KUBESHIP_HEALTH_CHECK_PATH"),
		HealthCheckTimeout:  parseDuration("KUBESHIP_HEALTH_CHECK_TIMEOUT", 120*time.Second),
		HealthCheckInterval: parseDuration("KUBESHIP_HEALTH_CHECK_INTERVAL", 5*time.Second),
		RolloutTimeout:      parseDuration("KUBESHIP_ROLLOUT_TIMEOUT", 5*time.Minute),
		EndpointInterval:    parseDuration("KUBESHIP_ENDPOINT_INTERVAL", 5*time.Second),
		EndpointTimeout:     parseDuration("KUBESHIP_ENDPOINT_TIMEOUT", 300*time.Second),

		CloudProvider:  os.Getenv("KUBESHIP_CLOUD_PROVIDER"),
		AWSRegion:      envOrDefault("AWS_REGION", "us-east-1"),
		AWSAccessKeyID: os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:   os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DOToken:        os.Getenv("DIGITALOCEAN_TOKEN"),
		HetznerToken:   os.Getenv("HCLOUD_TOKEN"),
	}
}

// Request builds the immutable per-run DeployRequest from the configuration.
func (c Config) Request() model.DeployRequest {
	req := model.DeployRequest{
		Image:         c.Image,
		Namespace:     c.Namespace,
		Name:          c.Name,
		ContainerName: c.ContainerName,
		Port:          int32(c.Port),
		Replicas:      int32(c.Replicas),
		ServiceType:   model.ServiceType(c.ServiceType),
		ClusterType:   model.ClusterType(c.ClusterType),
		Resources: model.Resources{
			CPULimit:      c.CPULimit,
			MemoryLimit:   c.MemoryLimit,
			CPURequest:    c.CPURequest,
			MemoryRequest: c.MemoryRequest,
		},
		Env: ParseEnvVars(c.EnvVars),
		Probes: model.ProbeConfig{
			Enabled:       c.EnableProbes,
			LivenessPath:  c.LivenessPath,
			ReadinessPath: c.ReadinessPath,
		},
		Ingress: model.IngressConfig{
			Host:       c.IngressHost,
			TLS:        c.IngressTLS,
			AutoDetect: c.AutoIngress,
		},
		Route: model.RouteConfig{
			Create:   c.CreateRoute,
			Hostname: c.RouteHostname,
		},
		PullSecretName:     c.PullSecretName,
		TemplatePath:       c.TemplatePath,
		Version:            c.Version,
		HealthCheckPath:    c.HealthCheckPath,
		HealthCheckTimeout: int(c.HealthCheckTimeout.Seconds()),
	}
	return req.WithDefaults()
}

// ParseEnvVars splits a newline-delimited KEY=VALUE block into ordered
// pairs. Blank lines and lines without '=' are skipped.
func ParseEnvVars(raw string) []model.EnvVar {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []model.EnvVar
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		out = append(out, model.EnvVar{Name: strings.TrimSpace(key), Value: value})
	}
	return out
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	// Fallback: treat as integer seconds
	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
