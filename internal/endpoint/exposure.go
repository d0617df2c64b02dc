package endpoint

import (
	"context"
	"errors"
	"fmt"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/pkg/model"
)

// ExposeURL layers Ingress (Kubernetes) or Route (OpenShift) host resolution
// on top of the service-type endpoint. The returned URL, when non-empty,
// takes precedence over the service URL as the final application URL.
func (r *Resolver) ExposeURL(ctx context.Context, req model.DeployRequest) (string, error) {
	if req.ClusterType == model.ClusterOpenShift && req.Route.Create {
		return r.routeURL(ctx, req)
	}
	if req.Ingress.Host != "" || req.Ingress.AutoDetect {
		return r.ingressURL(ctx, req)
	}
	return "", nil
}

// routeURL creates or reads the OpenShift Route and derives the URL from its
// assigned host. Routes get the unencrypted scheme unless the route object
// itself reports TLS.
func (r *Resolver) routeURL(ctx context.Context, req model.DeployRequest) (string, error) {
	host, tls, err := r.client.ExposeRoute(ctx, req.Namespace, req.Name, req.Route.Hostname, req.Port)
	if errors.Is(err, cluster.ErrRouteUnsupported) {
		r.logger.Warn("route requested but backend has no route support")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", nil
	}
	if tls {
		return "https://" + host, nil
	}
	return "http://" + host, nil
}

// ingressURL creates or reads the Ingress and derives the URL from its host
// and TLS presence.
func (r *Resolver) ingressURL(ctx context.Context, req model.DeployRequest) (string, error) {
	host, err := r.IngressHost(ctx, req)
	if err != nil {
		return "", err
	}
	if host == "" {
		return "", nil
	}

	live, err := r.client.EnsureIngress(ctx, r.buildIngress(req, host))
	if err != nil {
		return "", err
	}

	liveHost := host
	if len(live.Spec.Rules) > 0 && live.Spec.Rules[0].Host != "" {
		liveHost = live.Spec.Rules[0].Host
	}
	if len(live.Spec.TLS) > 0 {
		return "https://" + liveHost, nil
	}
	return "http://" + liveHost, nil
}

// IngressHost resolves the ingress host: the explicit host when given,
// otherwise an auto-detected nip.io name derived from the service's
// LoadBalancer address. Returns "" when auto-detection fails; the caller
// must then skip ingress creation entirely.
func (r *Resolver) IngressHost(ctx context.Context, req model.DeployRequest) (string, error) {
	if req.Ingress.Host != "" {
		return req.Ingress.Host, nil
	}
	if !req.Ingress.AutoDetect {
		return "", nil
	}

	svc, err := r.client.GetService(ctx, req.Namespace, req.Name)
	if err != nil {
		return "", err
	}
	if svc != nil {
		for _, ing := range svc.Status.LoadBalancer.Ingress {
			if ing.IP != "" {
				return fmt.Sprintf("%s.%s.%s.nip.io", req.Name, req.Namespace, ing.IP), nil
			}
		}
	}
	r.logger.Warn("ingress host auto-detection failed; skipping ingress",
		"namespace", req.Namespace, "name", req.Name)
	return "", nil
}

// buildIngress constructs the Ingress resource for the resolved host.
func (r *Resolver) buildIngress(req model.DeployRequest, host string) *networkingv1.Ingress {
	pathType := networkingv1.PathTypePrefix
	ing := &networkingv1.Ingress{
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    map[string]string{"app": req.Name},
		},
		Spec: networkingv1.IngressSpec{
			Rules: []networkingv1.IngressRule{{
				Host: host,
				IngressRuleValue: networkingv1.IngressRuleValue{
					HTTP: &networkingv1.HTTPIngressRuleValue{
						Paths: []networkingv1.HTTPIngressPath{{
							Path:     "/",
							PathType: &pathType,
							Backend: networkingv1.IngressBackend{
								Service: &networkingv1.IngressServiceBackend{
									Name: req.Name,
									Port: networkingv1.ServiceBackendPort{Number: req.Port},
								},
							},
						}},
					},
				},
			}},
		},
	}
	if req.Ingress.TLS {
		tls := networkingv1.IngressTLS{Hosts: []string{host}}
		if req.Ingress.SecretName != "" {
			tls.SecretName = req.Ingress.SecretName
		}
		ing.Spec.TLS = []networkingv1.IngressTLS{tls}
	}
	return ing
}
