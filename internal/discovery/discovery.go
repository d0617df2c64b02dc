// Package discovery probes the target cluster before any mutation: which
// flavor it is (OpenShift exposes the Route API group, vanilla Kubernetes
// does not) and whether the current identity holds the permissions a run
// needs. Results are computed once at startup.
package discovery

import (
	"fmt"

	"k8s.io/client-go/discovery"

	"github.com/kubeship/kubeship/pkg/model"
)

// apiGroupRoute marks an OpenShift cluster; no other distribution serves it.
const apiGroupRoute = "route.openshift.io"

// DetectClusterType determines the cluster flavor from the registered API
// groups. One discovery call, no fallback heuristics.
func DetectClusterType(discoveryClient discovery.DiscoveryInterface) (model.ClusterType, error) {
	isOpenShift, err := HasAPIGroup(discoveryClient, apiGroupRoute)
	if err != nil {
		return "", err
	}
	if isOpenShift {
		return model.ClusterOpenShift, nil
	}
	return model.ClusterKubernetes, nil
}

// HasAPIGroup checks whether a specific API group is registered with the cluster.
func HasAPIGroup(discoveryClient discovery.DiscoveryInterface, group string) (bool, error) {
	groups, err := discoveryClient.ServerGroups()
	if err != nil {
		return false, fmt.Errorf("discovery: failed to list server groups: %w", err)
	}

	for _, g := range groups.Groups {
		if g.Name == group {
			return true, nil
		}
	}
	return false, nil
}
