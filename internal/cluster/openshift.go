package cluster

import (
	"context"
	"fmt"
	"log/slog"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
)

// routeGVR is the OpenShift Route resource, reached through the dynamic
// client since routes are not part of the standard API surface.
var routeGVR = schema.GroupVersionResource{
	Group:    "route.openshift.io",
	Version:  "v1",
	Resource: "routes",
}

// OpenShiftClient layers Route support on top of the Kubernetes backend.
// Everything else behaves identically.
type OpenShiftClient struct {
	*KubernetesClient
	dyn    dynamic.Interface
	logger *slog.Logger
}

// NewOpenShiftClient creates the OpenShift backend.
func NewOpenShiftClient(clientset kubernetes.Interface, dyn dynamic.Interface) *OpenShiftClient {
	return &OpenShiftClient{
		KubernetesClient: NewKubernetesClient(clientset),
		dyn:              dyn,
		logger:           slog.Default().With("backend", "openshift"),
	}
}

// ExposeRoute creates a Route for the named service when absent and returns
// the assigned host. The scheme stays unencrypted unless the route object
// itself reports TLS termination.
func (c *OpenShiftClient) ExposeRoute(ctx context.Context, namespace, name, hostname string, port int32) (string, bool, error) {
	routes := c.dyn.Resource(routeGVR).Namespace(namespace)

	existing, err := routes.Get(ctx, name, metav1.GetOptions{})
	if err == nil {
		host, tls := routeHostAndTLS(existing)
		return host, tls, nil
	}
	if !apierrors.IsNotFound(err) {
		return "", false, fmt.Errorf("get route %s/%s: %w", namespace, name, err)
	}

	route := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "route.openshift.io/v1",
		"kind":       "Route",
		"metadata": map[string]any{
			"name":      name,
			"namespace": namespace,
		},
		"spec": map[string]any{
			"to": map[string]any{
				"kind": "Service",
				"name": name,
			},
			"port": map[string]any{
				"targetPort": int64(port),
			},
		},
	}}
	if hostname != "" {
		spec := route.Object["spec"].(map[string]any)
		spec["host"] = hostname
	}

	created, err := routes.Create(ctx, route, metav1.CreateOptions{})
	if err != nil {
		return "", false, fmt.Errorf("create route %s/%s: %w", namespace, name, err)
	}
	c.logger.Info("route created", "namespace", namespace, "name", name)

	host, tls := routeHostAndTLS(created)
	if host == "" {
		// The router may not have admitted the route yet; re-read once.
		if again, err := routes.Get(ctx, name, metav1.GetOptions{}); err == nil {
			host, tls = routeHostAndTLS(again)
		}
	}
	return host, tls, nil
}

// routeHostAndTLS extracts the assigned host (spec.host, falling back to the
// first ingress of status) and whether spec.tls is present.
func routeHostAndTLS(route *unstructured.Unstructured) (string, bool) {
	host, _, _ := unstructured.NestedString(route.Object, "spec", "host")
	if host == "" {
		ingress, _, _ := unstructured.NestedSlice(route.Object, "status", "ingress")
		if len(ingress) > 0 {
			if entry, ok := ingress[0].(map[string]any); ok {
				host, _ = entry["host"].(string)
			}
		}
	}
	_, hasTLS, _ := unstructured.NestedMap(route.Object, "spec", "tls")
	return host, hasTLS
}
