package rollback

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"

	"github.com/kubeship/kubeship/internal/cluster"
	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/internal/rollout"
)

const revisionAnnotation = "deployment.kubernetes.io/revision"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func testController(clientset *fake.Clientset) *Controller {
	client := cluster.NewKubernetesClient(clientset)
	monitor := rollout.NewMonitor(client, nil)
	monitor.Clock = &fakeClock{now: time.Unix(1700000000, 0)}
	return NewController(client, monitor, nil)
}

// readyDeployment builds a converged deployment at the given revision so the
// post-undo rollout wait completes immediately.
func readyDeployment(namespace, name string, revision int64, image string) *appsv1.Deployment {
	labels := map[string]string{"app": name}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			UID:         types.UID("dep-" + name),
			Generation:  1,
			Annotations: map[string]string{revisionAnnotation: strconv.FormatInt(revision, 10)},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(2)),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: name, Image: image}},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 1,
			Replicas:           2,
			UpdatedReplicas:    2,
			AvailableReplicas:  2,
			ReadyReplicas:      2,
		},
	}
}

func ownedReplicaSet(dep *appsv1.Deployment, revision int64, image string) *appsv1.ReplicaSet {
	labels := map[string]string{
		"app":                                  dep.Name,
		appsv1.DefaultDeploymentUniqueLabelKey: "hash" + strconv.FormatInt(revision, 10),
	}
	return &appsv1.ReplicaSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:        dep.Name + "-" + strconv.FormatInt(revision, 10),
			Namespace:   dep.Namespace,
			Labels:      labels,
			Annotations: map[string]string{revisionAnnotation: strconv.FormatInt(revision, 10)},
			OwnerReferences: []metav1.OwnerReference{{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       dep.Name,
				UID:        dep.UID,
				Controller: ptr.To(true),
			}},
		},
		Spec: appsv1.ReplicaSetSpec{
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: dep.Name, Image: image}},
				},
			},
		},
	}
}

func TestRun_RollsBackToPreviousRevision(t *testing.T) {
	dep := readyDeployment("prod", "myapp", 3, "myapp:v2")
	clientset := fake.NewSimpleClientset(dep,
		ownedReplicaSet(dep, 1, "myapp:v0"),
		ownedReplicaSet(dep, 2, "myapp:v1"),
		ownedReplicaSet(dep, 3, "myapp:v2"),
	)

	ctrl := testController(clientset)
	info, err := ctrl.Run(context.Background(), "prod", "myapp")
	require.NoError(t, err)

	assert.Equal(t, StateDone, ctrl.State())
	assert.Equal(t, int64(3), info.PreviousRevision)
	assert.Equal(t, "myapp:v2", info.PreviousImage)
	assert.Equal(t, int64(2), info.Revision)
	assert.Equal(t, "myapp:v1", info.Image)
	assert.Equal(t, int32(2), info.ReadyReplicas)
	assert.Equal(t, int32(2), info.DesiredReplicas)
}

func TestRun_MissingDeployment(t *testing.T) {
	ctrl := testController(fake.NewSimpleClientset())

	_, err := ctrl.Run(context.Background(), "prod", "myapp")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNotFound, errors.CodeOf(err))
	assert.Equal(t, StateFailed, ctrl.State())
}

func TestRun_SingleRevisionHasNothingToRollBackTo(t *testing.T) {
	dep := readyDeployment("prod", "myapp", 1, "myapp:v0")
	clientset := fake.NewSimpleClientset(dep, ownedReplicaSet(dep, 1, "myapp:v0"))

	ctrl := testController(clientset)
	_, err := ctrl.Run(context.Background(), "prod", "myapp")
	require.Error(t, err)
	assert.Equal(t, errors.ErrNoRevisionHistory, errors.CodeOf(err))
	assert.Equal(t, StateFailed, ctrl.State())
}

func TestRun_TwoRevisionsAccepted(t *testing.T) {
	dep := readyDeployment("prod", "myapp", 2, "myapp:v1")
	clientset := fake.NewSimpleClientset(dep,
		ownedReplicaSet(dep, 1, "myapp:v0"),
		ownedReplicaSet(dep, 2, "myapp:v1"),
	)

	ctrl := testController(clientset)
	info, err := ctrl.Run(context.Background(), "prod", "myapp")
	require.NoError(t, err)

	assert.Equal(t, int64(1), info.Revision)
	assert.Equal(t, "myapp:v0", info.Image)
}

func TestRun_TimedOutRollbackStillReportsCapture(t *testing.T) {
	// The undo is accepted but the deployment never converges; the run
	// fails yet the prior capture survives in the output.
	dep := readyDeployment("prod", "myapp", 3, "myapp:v2")
	dep.Status.AvailableReplicas = 0
	dep.Status.ReadyReplicas = 0
	clientset := fake.NewSimpleClientset(dep,
		ownedReplicaSet(dep, 2, "myapp:v1"),
		ownedReplicaSet(dep, 3, "myapp:v2"),
	)

	ctrl := testController(clientset)
	ctrl.Timeout = 30 * time.Second

	info, err := ctrl.Run(context.Background(), "prod", "myapp")
	require.Error(t, err)
	assert.Equal(t, errors.ErrRolloutTimedOut, errors.CodeOf(err))
	assert.Equal(t, StateFailed, ctrl.State())

	require.NotNil(t, info)
	assert.Equal(t, int64(3), info.PreviousRevision)
	assert.Equal(t, "myapp:v2", info.PreviousImage)
	assert.Equal(t, int64(2), info.Revision)
}
