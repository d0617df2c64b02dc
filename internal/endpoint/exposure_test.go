package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kubeship/kubeship/pkg/model"
)

func exposeRequest() model.DeployRequest {
	return model.DeployRequest{
		Name:      "myapp",
		Namespace: "prod",
		Image:     "nginx",
	}.WithDefaults()
}

func TestExposeURL_NoIngressRequested(t *testing.T) {
	r := testResolver(fake.NewSimpleClientset())

	url, err := r.ExposeURL(context.Background(), exposeRequest())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestExposeURL_ExplicitIngressHost(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	r := testResolver(clientset)

	req := exposeRequest()
	req.Ingress.Host = "myapp.example.com"

	url, err := r.ExposeURL(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "http://myapp.example.com", url)

	ing, err := clientset.NetworkingV1().Ingresses("prod").Get(context.Background(), "myapp", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "myapp.example.com", ing.Spec.Rules[0].Host)
	assert.Equal(t, "myapp", ing.Spec.Rules[0].HTTP.Paths[0].Backend.Service.Name)
}

func TestExposeURL_TLSIngress(t *testing.T) {
	r := testResolver(fake.NewSimpleClientset())

	req := exposeRequest()
	req.Ingress.Host = "myapp.example.com"
	req.Ingress.TLS = true
	req.Ingress.SecretName = "myapp-tls"

	url, err := r.ExposeURL(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://myapp.example.com", url)
}

func TestExposeURL_AutoDetectFromLoadBalancer(t *testing.T) {
	svc := newService("prod", "myapp", corev1.ServiceTypeLoadBalancer)
	svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{IP: "203.0.113.5"}}
	r := testResolver(fake.NewSimpleClientset(svc))

	req := exposeRequest()
	req.Ingress.AutoDetect = true

	url, err := r.ExposeURL(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "http://myapp.prod.203.0.113.5.nip.io", url)
}

func TestExposeURL_AutoDetectWithoutAddress(t *testing.T) {
	// No LoadBalancer address means no host can be derived; ingress
	// creation is skipped entirely rather than half-configured.
	clientset := fake.NewSimpleClientset(newService("prod", "myapp", corev1.ServiceTypeLoadBalancer))
	r := testResolver(clientset)

	req := exposeRequest()
	req.Ingress.AutoDetect = true

	url, err := r.ExposeURL(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, url)

	_, err = clientset.NetworkingV1().Ingresses("prod").Get(context.Background(), "myapp", metav1.GetOptions{})
	assert.Error(t, err)
}

func TestExposeURL_RouteUnsupportedOnKubernetes(t *testing.T) {
	// The Kubernetes backend has no route support; a requested route is
	// logged and skipped, not failed.
	r := testResolver(fake.NewSimpleClientset())

	req := exposeRequest()
	req.ClusterType = model.ClusterOpenShift
	req.Route.Create = true

	url, err := r.ExposeURL(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, url)
}
