// Package endpoint resolves the externally (or internally) reachable
// address and URL of a deployed service. Each service type has its own
// algorithm: ClusterIP resolves immediately to the cluster DNS name,
// LoadBalancer polls for an assigned ingress point, and NodePort walks an
// ordered chain of node-address strategies.
package endpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/observability"
	"github.com/kubeship/kubeship/internal/poll"
	"github.com/kubeship/kubeship/pkg/model"
)

// Resolution is the outcome of endpoint resolution. Unresolved is not an
// error: the deployment itself is still successful, only the URL output is
// omitted.
type Resolution struct {
	Endpoint model.ServiceEndpoint
	URL      string
	Resolved bool
}

// Resolver resolves service endpoints against a cluster.
type Resolver struct {
	client  cluster.Client
	metrics *observability.Metrics
	logger  *slog.Logger

	// LoadBalancer polling bounds: fixed interval, hard ceiling.
	Interval time.Duration
	Timeout  time.Duration
	Clock    errors.Clock

	// NodePort address strategies, tried in order; first non-empty wins.
	Strategies []AddressStrategy
}

// NewResolver creates a Resolver with the default strategy chain and
// polling bounds (60 polls at 5s intervals).
func NewResolver(client cluster.Client, metrics *observability.Metrics, sources ...PublicIPSource) *Resolver {
	return &Resolver{
		client:     client,
		metrics:    metrics,
		logger:     slog.Default().With("component", "endpoint"),
		Interval:   5 * time.Second,
		Timeout:    300 * time.Second,
		Clock:      errors.RealClock{},
		Strategies: DefaultStrategies(sources...),
	}
}

// Resolve determines the endpoint and application URL for the named service.
func (r *Resolver) Resolve(ctx context.Context, serviceType model.ServiceType, namespace, name string) (Resolution, error) {
	start := r.Clock.Now()
	res, err := r.resolve(ctx, serviceType, namespace, name)

	if r.metrics != nil {
		r.metrics.EndpointWaitDuration.Observe(r.Clock.Now().Sub(start).Seconds())
		outcome := "resolved"
		if err != nil {
			outcome = "error"
		} else if !res.Resolved {
			outcome = "unresolved"
		}
		r.metrics.EndpointOutcomeTotal.WithLabelValues(string(serviceType), outcome).Inc()
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, serviceType model.ServiceType, namespace, name string) (Resolution, error) {
	switch serviceType {
	case model.ServiceClusterIP:
		return r.resolveClusterIP(ctx, namespace, name)
	case model.ServiceLoadBalancer:
		return r.resolveLoadBalancer(ctx, namespace, name)
	case model.ServiceNodePort:
		return r.resolveNodePort(ctx, namespace, name)
	default:
		return Resolution{}, fmt.Errorf("endpoint: unknown service type %q", serviceType)
	}
}

// resolveClusterIP always succeeds immediately with the fixed internal DNS
// name. No polling.
func (r *Resolver) resolveClusterIP(ctx context.Context, namespace, name string) (Resolution, error) {
	svc, err := r.client.GetService(ctx, namespace, name)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		URL:      fmt.Sprintf("http://%s.%s.svc.cluster.local", name, namespace),
		Resolved: true,
	}
	if svc != nil && svc.Spec.ClusterIP != "" && svc.Spec.ClusterIP != corev1.ClusterIPNone {
		res.Endpoint = model.ServiceEndpoint{Address: svc.Spec.ClusterIP, Port: 80, Internal: true}
	}
	return res, nil
}

// resolveLoadBalancer polls for an assigned ingress IP or hostname. An IP
// is preferred over a hostname when both appear in the same poll. Reaching
// the ceiling yields an unresolved (not failed) resolution.
func (r *Resolver) resolveLoadBalancer(ctx context.Context, namespace, name string) (Resolution, error) {
	var address string

	poller := poll.Poller{Interval: r.Interval, Timeout: r.Timeout, Clock: r.Clock}
	outcome, attempts, err := poller.Until(ctx, func(ctx context.Context) (bool, error) {
		if r.metrics != nil {
			r.metrics.EndpointPollsTotal.WithLabelValues(string(model.ServiceLoadBalancer)).Inc()
		}
		svc, err := r.client.GetService(ctx, namespace, name)
		if err != nil {
			return false, err
		}
		if svc == nil {
			return false, nil
		}
		for _, ing := range svc.Status.LoadBalancer.Ingress {
			if ing.IP != "" {
				address = ing.IP
				return true, nil
			}
		}
		for _, ing := range svc.Status.LoadBalancer.Ingress {
			if ing.Hostname != "" {
				address = ing.Hostname
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return Resolution{}, err
	}

	if outcome != poll.Done || address == "" {
		r.logger.Warn("load balancer address not assigned before ceiling",
			"namespace", namespace, "name", name, "attempts", attempts)
		return Resolution{}, nil
	}

	port := r.servicePort(ctx, namespace, name)
	return Resolution{
		Endpoint: model.ServiceEndpoint{Address: address, Port: port},
		URL:      "http://" + address,
		Resolved: true,
	}, nil
}

// resolveNodePort walks the strategy chain; the resolved node address pairs
// with the service's assigned node port.
func (r *Resolver) resolveNodePort(ctx context.Context, namespace, name string) (Resolution, error) {
	svc, err := r.client.GetService(ctx, namespace, name)
	if err != nil {
		return Resolution{}, err
	}
	if svc == nil {
		return Resolution{}, fmt.Errorf("endpoint: service %s/%s not found", namespace, name)
	}

	var nodePort int32
	for _, p := range svc.Spec.Ports {
		if p.NodePort != 0 {
			nodePort = p.NodePort
			break
		}
	}

	nodes, err := r.client.GetNodes(ctx)
	if err != nil {
		return Resolution{}, err
	}

	for _, strategy := range r.Strategies {
		addr, ok := strategy.Resolve(ctx, nodes)
		if !ok {
			continue
		}
		if r.metrics != nil {
			r.metrics.NodeAddressStrategyUsed.WithLabelValues(strategy.Name()).Inc()
		}
		internal := strategy.Name() == strategyInternalIP
		if internal {
			r.logger.Warn("falling back to node InternalIP; address may be unreachable externally",
				"address", addr)
		}
		res := Resolution{
			Endpoint: model.ServiceEndpoint{Address: addr, Port: nodePort, Internal: internal},
			Resolved: true,
		}
		if nodePort != 0 {
			res.URL = fmt.Sprintf("http://%s:%d", addr, nodePort)
		} else {
			res.URL = "http://" + addr
		}
		return res, nil
	}

	r.logger.Warn("no routable node address found", "namespace", namespace, "name", name)
	return Resolution{}, nil
}

// servicePort reads the first declared port of the service, defaulting to 80.
func (r *Resolver) servicePort(ctx context.Context, namespace, name string) int32 {
	svc, err := r.client.GetService(ctx, namespace, name)
	if err != nil || svc == nil || len(svc.Spec.Ports) == 0 {
		return 80
	}
	return svc.Spec.Ports[0].Port
}
