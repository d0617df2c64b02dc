package cloudip

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	corev1 "k8s.io/api/core/v1"
)

// serversAPI is the slice of the hcloud client the source needs.
type serversAPI interface {
	GetByID(ctx context.Context, id int64) (*hcloud.Server, *hcloud.Response, error)
}

// HetznerSource resolves node public IPs through the Hetzner Cloud API.
type HetznerSource struct {
	servers serversAPI
	logger  *slog.Logger
}

// NewHetznerSource creates a Hetzner source from an API token.
func NewHetznerSource(token string) *HetznerSource {
	client := hcloud.NewClient(hcloud.WithToken(token))
	return &HetznerSource{
		servers: &client.Server,
		logger:  slog.Default().With("provider", "hetzner"),
	}
}

// Name returns the source name.
func (s *HetznerSource) Name() string { return "hetzner" }

// Matches reports whether the node's providerID marks it as a Hetzner server.
func (s *HetznerSource) Matches(node corev1.Node) bool {
	return strings.HasPrefix(node.Spec.ProviderID, "hcloud://")
}

// LookupPublicIP resolves the node's server and returns its public IPv4.
func (s *HetznerSource) LookupPublicIP(ctx context.Context, node corev1.Node) (string, error) {
	raw := strings.TrimPrefix(node.Spec.ProviderID, "hcloud://")
	serverID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("hetzner: node %s providerID %q: %w", node.Name, node.Spec.ProviderID, err)
	}

	server, _, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return "", fmt.Errorf("hetzner: get server %d: %w", serverID, err)
	}
	if server == nil || server.PublicNet.IPv4.IP == nil {
		s.logger.Debug("server has no public IP", "server_id", serverID)
		return "", nil
	}
	return server.PublicNet.IPv4.IP.String(), nil
}
