package cloudip

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/digitalocean/godo"
	corev1 "k8s.io/api/core/v1"
)

// dropletsAPI is the slice of the godo client the source needs.
type dropletsAPI interface {
	Get(ctx context.Context, dropletID int) (*godo.Droplet, *godo.Response, error)
}

// DigitalOceanSource resolves node public IPs through the DigitalOcean API.
type DigitalOceanSource struct {
	droplets dropletsAPI
	logger   *slog.Logger
}

// NewDigitalOceanSource creates a DigitalOcean source from an API token.
func NewDigitalOceanSource(token string) *DigitalOceanSource {
	client := godo.NewFromToken(token)
	return &DigitalOceanSource{
		droplets: client.Droplets,
		logger:   slog.Default().With("provider", "digitalocean"),
	}
}

// Name returns the source name.
func (s *DigitalOceanSource) Name() string { return "digitalocean" }

// Matches reports whether the node's providerID marks it as a droplet.
func (s *DigitalOceanSource) Matches(node corev1.Node) bool {
	return strings.HasPrefix(node.Spec.ProviderID, "digitalocean://")
}

// LookupPublicIP resolves the node's droplet and returns its public IPv4.
func (s *DigitalOceanSource) LookupPublicIP(ctx context.Context, node corev1.Node) (string, error) {
	raw := strings.TrimPrefix(node.Spec.ProviderID, "digitalocean://")
	dropletID, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("digitalocean: node %s providerID %q: %w", node.Name, node.Spec.ProviderID, err)
	}

	droplet, _, err := s.droplets.Get(ctx, dropletID)
	if err != nil {
		return "", fmt.Errorf("digitalocean: get droplet %d: %w", dropletID, err)
	}

	ip, err := droplet.PublicIPv4()
	if err != nil {
		return "", fmt.Errorf("digitalocean: droplet %d public IPv4: %w", dropletID, err)
	}
	if ip == "" {
		s.logger.Debug("droplet has no public IP", "droplet_id", dropletID)
	}
	return ip, nil
}
