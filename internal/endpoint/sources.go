package endpoint

import (
	"context"

	corev1 "k8s.io/api/core/v1"
)

// PublicIPSource looks up a node's public IP through a cloud-provider API.
// Matches gates the lookup on the node actually belonging to the provider,
// judged from its spec.providerID.
type PublicIPSource interface {
	Name() string
	Matches(node corev1.Node) bool
	LookupPublicIP(ctx context.Context, node corev1.Node) (string, error)
}
