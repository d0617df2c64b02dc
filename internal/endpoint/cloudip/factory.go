// Package cloudip implements the cloud-provider public-IP lookups used as
// the first NodePort address strategy. One source exists per supported
// provider; each is gated on the node's spec.providerID prefix.
package cloudip

import (
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/kubeship/kubeship/internal/endpoint"
)

// Credentials carries the per-provider API credentials. Sources are only
// built for providers with credentials present.
type Credentials struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	DigitalOceanToken  string
	HetznerToken       string
}

// Sources builds the public-IP sources for every provider with credentials.
// An empty result disables the cloud-API strategy entirely.
func Sources(creds Credentials) []endpoint.PublicIPSource {
	var out []endpoint.PublicIPSource
	if creds.AWSAccessKeyID != "" && creds.AWSSecretAccessKey != "" {
		out = append(out, NewAWSSource(creds.AWSRegion, creds.AWSAccessKeyID, creds.AWSSecretAccessKey))
	}
	if creds.DigitalOceanToken != "" {
		out = append(out, NewDigitalOceanSource(creds.DigitalOceanToken))
	}
	if creds.HetznerToken != "" {
		out = append(out, NewHetznerSource(creds.HetznerToken))
	}
	return out
}

// DetectProvider determines the cloud provider from node metadata by
// inspecting spec.providerID prefixes on the first node that carries one.
// Pure function — no API calls. Returns "aws", "digitalocean", "hetzner",
// or "" when unknown.
func DetectProvider(nodes []corev1.Node) string {
	for _, node := range nodes {
		switch {
		case strings.HasPrefix(node.Spec.ProviderID, "aws://"):
			return "aws"
		case strings.HasPrefix(node.Spec.ProviderID, "digitalocean://"):
			return "digitalocean"
		case strings.HasPrefix(node.Spec.ProviderID, "hcloud://"):
			return "hetzner"
		}
	}
	return ""
}
