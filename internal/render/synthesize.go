package render

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/kubeship/kubeship/pkg/model"
)

// Synthesize builds a minimal Deployment directly from the request for the
// template-free path: one container, configured resources, optional pull
// secret, optional probes, optional env block.
func (r *Renderer) Synthesize(req model.DeployRequest) (*appsv1.Deployment, error) {
	requests, limits, err := resourceLists(req.Resources)
	if err != nil {
		return nil, err
	}

	labels := map[string]string{"app": req.Name}

	container := corev1.Container{
		Name:  req.ContainerName,
		Image: req.Image,
		Ports: []corev1.ContainerPort{{ContainerPort: req.Port}},
		Resources: corev1.ResourceRequirements{
			Requests: requests,
			Limits:   limits,
		},
	}

	for _, ev := range req.Env {
		container.Env = append(container.Env, corev1.EnvVar{Name: ev.Name, Value: ev.Value})
	}

	if req.Probes.Enabled {
		if req.Probes.LivenessPath != "" {
			container.LivenessProbe = httpProbe(req.Probes.LivenessPath, req.Port, 15)
		}
		if req.Probes.ReadinessPath != "" {
			container.ReadinessProbe = httpProbe(req.Probes.ReadinessPath, req.Port, 5)
		}
	}

	spec := corev1.PodSpec{Containers: []corev1.Container{container}}
	if req.PullSecretName != "" {
		spec.ImagePullSecrets = []corev1.LocalObjectReference{{Name: req.PullSecretName}}
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(req.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec:       spec,
			},
		},
	}, nil
}

// SynthesizeService builds the companion Service for the request's declared
// service type, targeting the container port.
func (r *Renderer) SynthesizeService(req model.DeployRequest) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      req.Name,
			Namespace: req.Namespace,
			Labels:    map[string]string{"app": req.Name},
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceType(req.ServiceType),
			Selector: map[string]string{"app": req.Name},
			Ports: []corev1.ServicePort{{
				Port:       req.Port,
				TargetPort: intstr.FromInt32(req.Port),
			}},
		},
	}
}

// httpProbe builds an HTTP GET probe with the standard period.
func httpProbe(path string, port int32, initialDelay int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: path,
				Port: intstr.FromInt32(port),
			},
		},
		InitialDelaySeconds: initialDelay,
		PeriodSeconds:       10,
	}
}

// resourceLists parses the request's quantity strings, skipping empty ones.
func resourceLists(res model.Resources) (requests, limits corev1.ResourceList, err error) {
	requests = corev1.ResourceList{}
	limits = corev1.ResourceList{}

	add := func(list corev1.ResourceList, name corev1.ResourceName, value string) error {
		if value == "" {
			return nil
		}
		q, err := resource.ParseQuantity(value)
		if err != nil {
			return fmt.Errorf("render: invalid %s quantity %q: %w", name, value, err)
		}
		list[name] = q
		return nil
	}

	if err := add(requests, corev1.ResourceCPU, res.CPURequest); err != nil {
		return nil, nil, err
	}
	if err := add(requests, corev1.ResourceMemory, res.MemoryRequest); err != nil {
		return nil, nil, err
	}
	if err := add(limits, corev1.ResourceCPU, res.CPULimit); err != nil {
		return nil, nil, err
	}
	if err := add(limits, corev1.ResourceMemory, res.MemoryLimit); err != nil {
		return nil, nil, err
	}
	return requests, limits, nil
}
