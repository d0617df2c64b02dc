package rollout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/utils/ptr"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func testMonitor(clientset *fake.Clientset) (*Monitor, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	m := NewMonitor(cluster.NewKubernetesClient(clientset), nil)
	m.Clock = clock
	return m, clock
}

func testDeployment(replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "myapp", Namespace: "prod", Generation: 2},
		Spec:       appsv1.DeploymentSpec{Replicas: ptr.To(replicas)},
	}
}

func readyStatus(dep *appsv1.Deployment, replicas int32) *appsv1.Deployment {
	out := dep.DeepCopy()
	out.Status = appsv1.DeploymentStatus{
		ObservedGeneration: out.Generation,
		Replicas:           replicas,
		UpdatedReplicas:    replicas,
		AvailableReplicas:  replicas,
	}
	return out
}

func TestAwaitReady_ImmediatelyReady(t *testing.T) {
	dep := readyStatus(testDeployment(3), 3)
	m, _ := testMonitor(fake.NewSimpleClientset(dep))

	outcome, err := m.AwaitReady(context.Background(), "prod", "myapp", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Ready, outcome)
}

func TestAwaitReady_ConvergesBeforeTimeout(t *testing.T) {
	// Readiness arrives 250 simulated seconds in; a 300s window covers it.
	dep := testDeployment(3)
	clientset := fake.NewSimpleClientset(dep)
	m, clock := testMonitor(clientset)
	start := clock.Now()

	clientset.PrependReactor("get", "deployments", func(_ k8stesting.Action) (bool, runtime.Object, error) {
		if clock.Now().Sub(start) >= 250*time.Second {
			return true, readyStatus(dep, 3), nil
		}
		return true, dep.DeepCopy(), nil
	})

	outcome, err := m.AwaitReady(context.Background(), "prod", "myapp", 300*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Ready, outcome)
}

func TestAwaitReady_TimesOutBeforeConvergence(t *testing.T) {
	// Same convergence point, shorter window: the wait times out first.
	dep := testDeployment(3)
	clientset := fake.NewSimpleClientset(dep)
	m, clock := testMonitor(clientset)
	start := clock.Now()

	clientset.PrependReactor("get", "deployments", func(_ k8stesting.Action) (bool, runtime.Object, error) {
		if clock.Now().Sub(start) >= 250*time.Second {
			return true, readyStatus(dep, 3), nil
		}
		return true, dep.DeepCopy(), nil
	})

	outcome, err := m.AwaitReady(context.Background(), "prod", "myapp", 200*time.Second)
	require.NoError(t, err)
	assert.Equal(t, TimedOut, outcome)
}

func TestAwaitReady_MissingDeployment(t *testing.T) {
	m, _ := testMonitor(fake.NewSimpleClientset())

	_, err := m.AwaitReady(context.Background(), "prod", "myapp", time.Minute)
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
}

func TestAwaitReady_ProgressDeadlineExceeded(t *testing.T) {
	dep := testDeployment(3)
	dep.Status.Conditions = []appsv1.DeploymentCondition{{
		Type:    appsv1.DeploymentProgressing,
		Status:  corev1.ConditionFalse,
		Reason:  "ProgressDeadlineExceeded",
		Message: "ReplicaSet has timed out progressing",
	}}
	m, _ := testMonitor(fake.NewSimpleClientset(dep))

	_, err := m.AwaitReady(context.Background(), "prod", "myapp", time.Minute)
	require.Error(t, err)
	assert.Equal(t, errors.ErrClusterOperationFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "ProgressDeadlineExceeded")
}

func TestDeploymentReady(t *testing.T) {
	base := testDeployment(3)

	tests := []struct {
		name   string
		mutate func(*appsv1.Deployment)
		want   bool
	}{
		{"all converged", func(d *appsv1.Deployment) {}, true},
		{"stale generation", func(d *appsv1.Deployment) { d.Status.ObservedGeneration = 1 }, false},
		{"updating", func(d *appsv1.Deployment) { d.Status.UpdatedReplicas = 2 }, false},
		{"old replicas lingering", func(d *appsv1.Deployment) { d.Status.Replicas = 4 }, false},
		{"unavailable", func(d *appsv1.Deployment) { d.Status.AvailableReplicas = 2 }, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dep := readyStatus(base, 3)
			tc.mutate(dep)
			assert.Equal(t, tc.want, deploymentReady(dep))
		})
	}
}

func TestAwaitReady_NilReplicasDefaultsToOne(t *testing.T) {
	dep := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "myapp", Namespace: "prod", Generation: 1},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 1,
			Replicas:           1,
			UpdatedReplicas:    1,
			AvailableReplicas:  1,
		},
	}
	m, _ := testMonitor(fake.NewSimpleClientset(dep))

	outcome, err := m.AwaitReady(context.Background(), "prod", "myapp", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, Ready, outcome)
}
