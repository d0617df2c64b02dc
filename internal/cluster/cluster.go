// Package cluster provides the synchronous client used for every cluster
// operation of an orchestration run. Two backends exist: a Kubernetes
// backend built on the typed clientset and an OpenShift backend that layers
// Route support on top of it via the dynamic client. The backend is selected
// once per run from the declared cluster type.
package cluster

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/kubeship/kubeship/pkg/model"
)

// Client is the capability set the orchestration core needs from a cluster.
// Reads that hit a missing object return (nil, nil) rather than an error so
// callers can distinguish "absent" from a hard failure.
type Client interface {
	// GetDeployment returns the deployment, or nil when absent.
	GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error)
	// ApplyDeployment creates or updates the deployment.
	ApplyDeployment(ctx context.Context, dep *appsv1.Deployment) error
	// ApplyService creates or updates the service.
	ApplyService(ctx context.Context, svc *corev1.Service) error
	// ApplySecret creates or updates the secret.
	ApplySecret(ctx context.Context, sec *corev1.Secret) error
	// ApplyManifest decodes a multi-document YAML manifest and applies every
	// resource in order.
	ApplyManifest(ctx context.Context, manifest []byte) error
	// EnsureNamespace creates the namespace when it does not exist.
	EnsureNamespace(ctx context.Context, namespace string) error

	// GetService returns the service, or nil when absent.
	GetService(ctx context.Context, namespace, name string) (*corev1.Service, error)
	// GetNodes lists cluster nodes.
	GetNodes(ctx context.Context) ([]corev1.Node, error)
	// EnsureIngress creates the ingress when absent and returns the live object.
	EnsureIngress(ctx context.Context, ing *networkingv1.Ingress) (*networkingv1.Ingress, error)
	// GetIngress returns the ingress, or nil when absent.
	GetIngress(ctx context.Context, namespace, name string) (*networkingv1.Ingress, error)

	// ExposeRoute creates (or reads) an OpenShift Route for the service and
	// returns its assigned host and whether the route reports TLS. Backends
	// without route support return ErrRouteUnsupported.
	ExposeRoute(ctx context.Context, namespace, name, hostname string, port int32) (host string, tls bool, err error)

	// RolloutUndo reverts the deployment pod template to the previous revision.
	RolloutUndo(ctx context.Context, namespace, name string) error
	// RevisionHistory returns the deployment's ReplicaSet history ordered by
	// ascending revision number.
	RevisionHistory(ctx context.Context, namespace, name string) ([]model.RevisionInfo, error)
	// CurrentRevision returns the deployment's current revision number.
	CurrentRevision(ctx context.Context, namespace, name string) (int64, error)
	// CurrentImage returns the image of the deployment's first container.
	CurrentImage(ctx context.Context, namespace, name string) (string, error)

	// PodsForDeployment lists the pods selected by the deployment.
	PodsForDeployment(ctx context.Context, namespace, name string) ([]corev1.Pod, error)
	// EventsFor returns recent event messages for the named pod.
	EventsFor(ctx context.Context, namespace, podName string) ([]string, error)
	// LogsFor returns the last tailLines of the named pod's log.
	LogsFor(ctx context.Context, namespace, podName string, tailLines int64) (string, error)
}

// ErrRouteUnsupported is returned by backends without OpenShift Route support.
var ErrRouteUnsupported = fmt.Errorf("cluster: routes are not supported by this backend")

// New selects the backend for the declared cluster type. The dynamic client
// is only required for OpenShift.
func New(clusterType model.ClusterType, clientset kubernetes.Interface, dyn dynamic.Interface) (Client, error) {
	switch clusterType {
	case model.ClusterKubernetes, "":
		return NewKubernetesClient(clientset), nil
	case model.ClusterOpenShift:
		return NewOpenShiftClient(clientset, dyn), nil
	default:
		return nil, fmt.Errorf("cluster: unknown cluster type %q", clusterType)
	}
}
