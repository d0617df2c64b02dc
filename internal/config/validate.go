package config

import (
	"fmt"
	"os"
	"time"
)

// Validate checks that the Config contains valid values for the requested
// action. Returns an error describing the first invalid field found.
// Validation failures abort before any cluster call is made.
func (c Config) Validate() error {
	switch c.Action {
	case "deploy", "rollback":
	default:
		return fmt.Errorf("config: action must be deploy or rollback, got %q", c.Action)
	}

	switch c.ClusterType {
	case "kubernetes", "openshift", "auto":
	default:
		return fmt.Errorf("config: cluster type must be kubernetes, openshift or auto, got %q", c.ClusterType)
	}

	if c.Name == "" {
		return fmt.Errorf("config: KUBESHIP_NAME is required")
	}

	if c.Action == "deploy" {
		if c.Image == "" {
			return fmt.Errorf("config: KUBESHIP_IMAGE is required for deploy")
		}
		switch c.ServiceType {
		case "ClusterIP", "NodePort", "LoadBalancer":
		default:
			return fmt.Errorf("config: service type must be ClusterIP, NodePort or LoadBalancer, got %q", c.ServiceType)
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("config: port must be 1-65535, got %d", c.Port)
		}
		if c.Replicas < 1 {
			return fmt.Errorf("config: replicas must be >= 1, got %d", c.Replicas)
		}
		if c.TemplatePath != "" {
			if _, err := os.Stat(c.TemplatePath); err != nil {
				return fmt.Errorf("config: manifest template %q not readable: %w", c.TemplatePath, err)
			}
		}
	}

	if c.RolloutTimeout < 10*time.Second {
		return fmt.Errorf("config: RolloutTimeout must be >= 10s, got %v", c.RolloutTimeout)
	}
	if c.HealthCheckInterval < time.Second {
		return fmt.Errorf("config: HealthCheckInterval must be >= 1s, got %v", c.HealthCheckInterval)
	}
	if c.EndpointInterval < time.Second {
		return fmt.Errorf("config: EndpointInterval must be >= 1s, got %v", c.EndpointInterval)
	}

	return nil
}
