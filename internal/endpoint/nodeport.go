package endpoint

import (
	"context"
	"net"

	corev1 "k8s.io/api/core/v1"
)

// Strategy names, used for metrics labels and the InternalIP reachability flag.
const (
	strategyCloudAPI    = "cloud_api"
	strategyExternalIP  = "external_ip"
	strategyPublicLabel = "public_ip_label"
	strategyHostname    = "hostname"
	strategyInternalIP  = "internal_ip"
)

// Node labels some cloud installers stamp with the node's public address.
var publicIPLabels = []string{
	"kubeship.io/public-ip",
	"node.kubernetes.io/public-ip",
	"external-ip",
}

// AddressStrategy attempts to produce a routable node address. Strategies
// are tried in order; the first non-empty result wins.
type AddressStrategy interface {
	Name() string
	Resolve(ctx context.Context, nodes []corev1.Node) (addr string, ok bool)
}

// DefaultStrategies builds the ordered NodePort fallback chain:
// cloud-provider API, ExternalIP (public ranges only), public-IP label,
// Hostname address, and finally InternalIP.
func DefaultStrategies(sources ...PublicIPSource) []AddressStrategy {
	chain := []AddressStrategy{}
	if len(sources) > 0 {
		chain = append(chain, cloudAPIStrategy{sources: sources})
	}
	return append(chain,
		externalIPStrategy{},
		labelStrategy{},
		hostnameStrategy{},
		internalIPStrategy{},
	)
}

// cloudAPIStrategy asks each configured cloud source for a worker's public IP.
type cloudAPIStrategy struct {
	sources []PublicIPSource
}

func (cloudAPIStrategy) Name() string { return strategyCloudAPI }

func (s cloudAPIStrategy) Resolve(ctx context.Context, nodes []corev1.Node) (string, bool) {
	for _, node := range nodes {
		for _, src := range s.sources {
			if !src.Matches(node) {
				continue
			}
			ip, err := src.LookupPublicIP(ctx, node)
			if err == nil && ip != "" {
				return ip, true
			}
		}
	}
	return "", false
}

// externalIPStrategy returns a node ExternalIP address, excluding RFC1918
// private ranges — a private ExternalIP is not reachable from outside.
type externalIPStrategy struct{}

func (externalIPStrategy) Name() string { return strategyExternalIP }

func (externalIPStrategy) Resolve(_ context.Context, nodes []corev1.Node) (string, bool) {
	for _, node := range nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Type != corev1.NodeExternalIP || addr.Address == "" {
				continue
			}
			if isPrivateIP(addr.Address) {
				continue
			}
			return addr.Address, true
		}
	}
	return "", false
}

// labelStrategy reads well-known public-IP node labels.
type labelStrategy struct{}

func (labelStrategy) Name() string { return strategyPublicLabel }

func (labelStrategy) Resolve(_ context.Context, nodes []corev1.Node) (string, bool) {
	for _, node := range nodes {
		for _, label := range publicIPLabels {
			if v := node.Labels[label]; v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// hostnameStrategy returns a node's Hostname-type address.
type hostnameStrategy struct{}

func (hostnameStrategy) Name() string { return strategyHostname }

func (hostnameStrategy) Resolve(_ context.Context, nodes []corev1.Node) (string, bool) {
	for _, node := range nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Type == corev1.NodeHostName && addr.Address != "" {
				return addr.Address, true
			}
		}
	}
	return "", false
}

// internalIPStrategy is the last resort; the caller flags the result as
// possibly unreachable externally.
type internalIPStrategy struct{}

func (internalIPStrategy) Name() string { return strategyInternalIP }

func (internalIPStrategy) Resolve(_ context.Context, nodes []corev1.Node) (string, bool) {
	for _, node := range nodes {
		for _, addr := range node.Status.Addresses {
			if addr.Type == corev1.NodeInternalIP && addr.Address != "" {
				return addr.Address, true
			}
		}
	}
	return "", false
}

// RFC1918 private ranges.
var privateNets = []net.IPNet{
	{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
	{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
}

// isPrivateIP reports whether addr parses as an IPv4 address inside an
// RFC1918 range. Unparseable addresses are treated as non-private.
func isPrivateIP(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
