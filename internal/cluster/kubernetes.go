package cluster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/kubeship/kubeship/pkg/model"
)

// revisionAnnotation is the annotation the deployment controller stamps on
// every ReplicaSet it owns.
const revisionAnnotation = "deployment.kubernetes.io/revision"

// KubernetesClient implements Client against a vanilla Kubernetes cluster
// using the typed clientset.
type KubernetesClient struct {
	clientset kubernetes.Interface
	logger    *slog.Logger
}

// NewKubernetesClient creates the Kubernetes backend.
func NewKubernetesClient(clientset kubernetes.Interface) *KubernetesClient {
	return &KubernetesClient{
		clientset: clientset,
		logger:    slog.Default().With("backend", "kubernetes"),
	}
}

// GetDeployment returns the deployment, or nil when absent.
func (c *KubernetesClient) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deployment %s/%s: %w", namespace, name, err)
	}
	return dep, nil
}

// ApplyDeployment creates or updates the deployment.
func (c *KubernetesClient) ApplyDeployment(ctx context.Context, dep *appsv1.Deployment) error {
	deps := c.clientset.AppsV1().Deployments(dep.Namespace)
	existing, err := deps.Get(ctx, dep.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = deps.Create(ctx, dep, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("create deployment %s/%s: %w", dep.Namespace, dep.Name, err)
		}
		c.logger.Info("deployment created", "namespace", dep.Namespace, "name", dep.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get deployment %s/%s: %w", dep.Namespace, dep.Name, err)
	}

	dep.ResourceVersion = existing.ResourceVersion
	if _, err := deps.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update deployment %s/%s: %w", dep.Namespace, dep.Name, err)
	}
	c.logger.Info("deployment updated", "namespace", dep.Namespace, "name", dep.Name)
	return nil
}

// ApplyService creates or updates the service, preserving the immutable
// ClusterIP on update.
func (c *KubernetesClient) ApplyService(ctx context.Context, svc *corev1.Service) error {
	services := c.clientset.CoreV1().Services(svc.Namespace)
	existing, err := services.Get(ctx, svc.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = services.Create(ctx, svc, metav1.CreateOptions{})
		if err != nil {
			return fmt.Errorf("create service %s/%s: %w", svc.Namespace, svc.Name, err)
		}
		c.logger.Info("service created", "namespace", svc.Namespace, "name", svc.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get service %s/%s: %w", svc.Namespace, svc.Name, err)
	}

	svc.ResourceVersion = existing.ResourceVersion
	svc.Spec.ClusterIP = existing.Spec.ClusterIP
	if _, err := services.Update(ctx, svc, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update service %s/%s: %w", svc.Namespace, svc.Name, err)
	}
	c.logger.Info("service updated", "namespace", svc.Namespace, "name", svc.Name)
	return nil
}

// ApplySecret creates or updates the secret.
func (c *KubernetesClient) ApplySecret(ctx context.Context, sec *corev1.Secret) error {
	secrets := c.clientset.CoreV1().Secrets(sec.Namespace)
	existing, err := secrets.Get(ctx, sec.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		if _, err := secrets.Create(ctx, sec, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("create secret %s/%s: %w", sec.Namespace, sec.Name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get secret %s/%s: %w", sec.Namespace, sec.Name, err)
	}

	sec.ResourceVersion = existing.ResourceVersion
	if _, err := secrets.Update(ctx, sec, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update secret %s/%s: %w", sec.Namespace, sec.Name, err)
	}
	return nil
}

// EnsureNamespace creates the namespace when it does not exist. The get
// failing with NotFound is the normal path, not an error.
func (c *KubernetesClient) EnsureNamespace(ctx context.Context, namespace string) error {
	_, err := c.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsNotFound(err) {
		return fmt.Errorf("get namespace %s: %w", namespace, err)
	}

	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}
	if _, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		// Lost the race with a concurrent creator; the namespace exists.
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("create namespace %s: %w", namespace, err)
	}
	c.logger.Info("namespace created", "namespace", namespace)
	return nil
}

// GetService returns the service, or nil when absent.
func (c *KubernetesClient) GetService(ctx context.Context, namespace, name string) (*corev1.Service, error) {
	svc, err := c.clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s/%s: %w", namespace, name, err)
	}
	return svc, nil
}

// GetNodes lists cluster nodes.
func (c *KubernetesClient) GetNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return list.Items, nil
}

// EnsureIngress creates the ingress when absent and returns the live object.
func (c *KubernetesClient) EnsureIngress(ctx context.Context, ing *networkingv1.Ingress) (*networkingv1.Ingress, error) {
	ingresses := c.clientset.NetworkingV1().Ingresses(ing.Namespace)
	existing, err := ingresses.Get(ctx, ing.Name, metav1.GetOptions{})
	if err == nil {
		return existing, nil
	}
	if !apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("get ingress %s/%s: %w", ing.Namespace, ing.Name, err)
	}

	created, err := ingresses.Create(ctx, ing, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("create ingress %s/%s: %w", ing.Namespace, ing.Name, err)
	}
	c.logger.Info("ingress created", "namespace", ing.Namespace, "name", ing.Name, "host", hostOf(created))
	return created, nil
}

// GetIngress returns the ingress, or nil when absent.
func (c *KubernetesClient) GetIngress(ctx context.Context, namespace, name string) (*networkingv1.Ingress, error) {
	ing, err := c.clientset.NetworkingV1().Ingresses(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ingress %s/%s: %w", namespace, name, err)
	}
	return ing, nil
}

// ExposeRoute is unsupported on vanilla Kubernetes.
func (c *KubernetesClient) ExposeRoute(_ context.Context, _, _, _ string, _ int32) (string, bool, error) {
	return "", false, ErrRouteUnsupported
}

// ownedReplicaSets returns the deployment's ReplicaSets sorted by ascending
// revision annotation.
func (c *KubernetesClient) ownedReplicaSets(ctx context.Context, dep *appsv1.Deployment) ([]appsv1.ReplicaSet, error) {
	selector, err := metav1.LabelSelectorAsSelector(dep.Spec.Selector)
	if err != nil {
		return nil, fmt.Errorf("deployment %s/%s selector: %w", dep.Namespace, dep.Name, err)
	}

	list, err := c.clientset.AppsV1().ReplicaSets(dep.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list replicasets for %s/%s: %w", dep.Namespace, dep.Name, err)
	}

	var owned []appsv1.ReplicaSet
	for _, rs := range list.Items {
		if metav1.IsControlledBy(&rs, dep) {
			owned = append(owned, rs)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return revisionOf(&owned[i]) < revisionOf(&owned[j])
	})
	return owned, nil
}

// revisionOf parses the revision annotation of a ReplicaSet; 0 when missing.
func revisionOf(rs *appsv1.ReplicaSet) int64 {
	rev, err := strconv.ParseInt(rs.Annotations[revisionAnnotation], 10, 64)
	if err != nil {
		return 0
	}
	return rev
}

// RevisionHistory returns the deployment's ReplicaSet history ordered by
// ascending revision number.
func (c *KubernetesClient) RevisionHistory(ctx context.Context, namespace, name string) ([]model.RevisionInfo, error) {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, nil
	}

	owned, err := c.ownedReplicaSets(ctx, dep)
	if err != nil {
		return nil, err
	}

	history := make([]model.RevisionInfo, 0, len(owned))
	for i := range owned {
		info := model.RevisionInfo{Revision: revisionOf(&owned[i])}
		if containers := owned[i].Spec.Template.Spec.Containers; len(containers) > 0 {
			info.Image = containers[0].Image
		}
		history = append(history, info)
	}
	return history, nil
}

// RolloutUndo reverts the deployment's pod template to the revision directly
// below the current one, mirroring kubectl rollout undo.
func (c *KubernetesClient) RolloutUndo(ctx context.Context, namespace, name string) error {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return err
	}
	if dep == nil {
		return fmt.Errorf("deployment %s/%s not found", namespace, name)
	}

	owned, err := c.ownedReplicaSets(ctx, dep)
	if err != nil {
		return err
	}

	current, err := strconv.ParseInt(dep.Annotations[revisionAnnotation], 10, 64)
	if err != nil {
		return fmt.Errorf("deployment %s/%s has no revision annotation", namespace, name)
	}

	var target *appsv1.ReplicaSet
	for i := range owned {
		rev := revisionOf(&owned[i])
		if rev < current && (target == nil || rev > revisionOf(target)) {
			target = &owned[i]
		}
	}
	if target == nil {
		return fmt.Errorf("deployment %s/%s has no previous revision to roll back to", namespace, name)
	}

	template := target.Spec.Template.DeepCopy()
	delete(template.Labels, appsv1.DefaultDeploymentUniqueLabelKey)
	dep.Spec.Template = *template
	if dep.Annotations == nil {
		dep.Annotations = map[string]string{}
	}
	dep.Annotations[revisionAnnotation] = strconv.FormatInt(revisionOf(target), 10)

	if _, err := c.clientset.AppsV1().Deployments(namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("undo deployment %s/%s: %w", namespace, name, err)
	}
	c.logger.Info("rollout undo issued",
		"namespace", namespace,
		"name", name,
		"target_revision", revisionOf(target),
	)
	return nil
}

// CurrentRevision returns the deployment's current revision number.
func (c *KubernetesClient) CurrentRevision(ctx context.Context, namespace, name string) (int64, error) {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return 0, err
	}
	if dep == nil {
		return 0, fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	rev, err := strconv.ParseInt(dep.Annotations[revisionAnnotation], 10, 64)
	if err != nil {
		return 0, nil
	}
	return rev, nil
}

// CurrentImage returns the image of the deployment's first container.
func (c *KubernetesClient) CurrentImage(ctx context.Context, namespace, name string) (string, error) {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return "", err
	}
	if dep == nil {
		return "", fmt.Errorf("deployment %s/%s not found", namespace, name)
	}
	if len(dep.Spec.Template.Spec.Containers) == 0 {
		return "", nil
	}
	return dep.Spec.Template.Spec.Containers[0].Image, nil
}

// PodsForDeployment lists the pods selected by the deployment.
func (c *KubernetesClient) PodsForDeployment(ctx context.Context, namespace, name string) ([]corev1.Pod, error) {
	dep, err := c.GetDeployment(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if dep == nil {
		return nil, nil
	}

	selector := labels.SelectorFromSet(dep.Spec.Selector.MatchLabels)
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("list pods for %s/%s: %w", namespace, name, err)
	}
	return list.Items, nil
}

// EventsFor returns recent event messages for the named pod.
func (c *KubernetesClient) EventsFor(ctx context.Context, namespace, podName string) ([]string, error) {
	list, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: "involvedObject.name=" + podName,
	})
	if err != nil {
		return nil, fmt.Errorf("list events for pod %s/%s: %w", namespace, podName, err)
	}

	messages := make([]string, 0, len(list.Items))
	for _, ev := range list.Items {
		messages = append(messages, fmt.Sprintf("%s %s: %s", ev.Type, ev.Reason, ev.Message))
	}
	return messages, nil
}

// LogsFor returns the last tailLines of the named pod's log.
func (c *KubernetesClient) LogsFor(ctx context.Context, namespace, podName string, tailLines int64) (string, error) {
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(podName, &corev1.PodLogOptions{
		TailLines: ptr.To(tailLines),
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("stream logs for pod %s/%s: %w", namespace, podName, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("read logs for pod %s/%s: %w", namespace, podName, err)
	}
	return string(data), nil
}

func hostOf(ing *networkingv1.Ingress) string {
	if len(ing.Spec.Rules) > 0 {
		return ing.Spec.Rules[0].Host
	}
	return ""
}
