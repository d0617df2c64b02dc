package endpoint

import (
	"context"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
)

// fakeClock advances its notion of now by the slept duration, so polling
// loops complete instantly in tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// testResolver wires a Resolver against a fake clientset with instant polls.
func testResolver(clientset *fake.Clientset, sources ...PublicIPSource) *Resolver {
	return &Resolver{
		client:     cluster.NewKubernetesClient(clientset),
		logger:     slog.Default(),
		Interval:   5 * time.Second,
		Timeout:    300 * time.Second,
		Clock:      &fakeClock{now: time.Unix(1700000000, 0)},
		Strategies: DefaultStrategies(sources...),
	}
}

func newService(namespace, name string, serviceType corev1.ServiceType) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.ServiceSpec{
			Type:      serviceType,
			ClusterIP: "10.96.0.17",
			Ports:     []corev1.ServicePort{{Port: 8080}},
		},
	}
}

func newNode(name string, addresses []corev1.NodeAddress, labels map[string]string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
		Status:     corev1.NodeStatus{Addresses: addresses},
	}
}

// staticSource is a canned cloud public-IP source.
type staticSource struct {
	name    string
	matches bool
	ip      string
	err     error
}

func (s staticSource) Name() string                 { return s.name }
func (s staticSource) Matches(_ corev1.Node) bool   { return s.matches }
func (s staticSource) LookupPublicIP(_ context.Context, _ corev1.Node) (string, error) {
	return s.ip, s.err
}

var _ errors.Clock = (*fakeClock)(nil)
