package cluster

import (
	"context"
	"strconv"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/utils/ptr"
)

// testEnv bundles the fake clientset and backend shared by the tests.
type testEnv struct {
	clientset *fake.Clientset
	client    *KubernetesClient
	ctx       context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clientset := fake.NewSimpleClientset()
	return &testEnv{
		clientset: clientset,
		client:    NewKubernetesClient(clientset),
		ctx:       context.Background(),
	}
}

// newDeployment builds a deployment with the given revision annotation.
func newDeployment(namespace, name string, revision int64, image string) *appsv1.Deployment {
	labels := map[string]string{"app": name}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			UID:         types.UID("dep-" + name),
			Annotations: map[string]string{revisionAnnotation: strconv.FormatInt(revision, 10)},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(1)),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{Name: name, Image: image}},
				},
			},
		},
	}
}

// newReplicaSet builds a ReplicaSet owned by the deployment, stamped with a
// revision annotation and carrying the given image.
func newReplicaSet(dep *appsv1.Deployment, revision int64, image string) *appsv1.ReplicaSet {
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
