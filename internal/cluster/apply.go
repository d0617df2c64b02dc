package cluster

import (
	"context"
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// ApplyManifest splits a rendered multi-document manifest and applies each
// resource in document order. Unknown kinds are rejected before any document
// is applied; a failing apply mid-manifest is not compensated.
func (c *KubernetesClient) ApplyManifest(ctx context.Context, manifest []byte) error {
	docs := splitDocuments(manifest)
	if len(docs) == 0 {
		return fmt.Errorf("apply: manifest contains no resources")
	}

	type applier func(context.Context) error
	appliers := make([]applier, 0, len(docs))

	for i, doc := range docs {
		var meta metav1.TypeMeta
		if err := yaml.Unmarshal(doc, &meta); err != nil {
			return fmt.Errorf("apply: document %d: %w", i+1, err)
		}

		switch meta.Kind {
		case "Deployment":
			dep := &appsv1.Deployment{}
			if err := yaml.Unmarshal(doc, dep); err != nil {
				return fmt.Errorf("apply: document %d (Deployment): %w", i+1, err)
			}
			appliers = append(appliers, func(ctx context.Context) error { return c.ApplyDeployment(ctx, dep) })
		case "Service":
			svc := &corev1.Service{}
			if err := yaml.Unmarshal(doc, svc); err != nil {
				return fmt.Errorf("apply: document %d (Service): %w", i+1, err)
			}
			appliers = append(appliers, func(ctx context.Context) error { return c.ApplyService(ctx, svc) })
		case "Secret":
			sec := &corev1.Secret{}
			if err := yaml.Unmarshal(doc, sec); err != nil {
				return fmt.Errorf("apply: document %d (Secret): %w", i+1, err)
			}
			appliers = append(appliers, func(ctx context.Context) error { return c.ApplySecret(ctx, sec) })
		case "Ingress":
			ing := &networkingv1.Ingress{}
			if err := yaml.Unmarshal(doc, ing); err != nil {
				return fmt.Errorf("apply: document %d (Ingress): %w", i+1, err)
			}
			appliers = append(appliers, func(ctx context.Context) error {
				_, err := c.EnsureIngress(ctx, ing)
				return err
			})
		default:
			return fmt.Errorf("apply: document %d has unsupported kind %q", i+1, meta.Kind)
		}
	}

	for _, apply := range appliers {
		if err := apply(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ManifestHasKind reports whether any document in the manifest declares the
// given kind. Documents that fail to parse are skipped here; ApplyManifest
// rejects them with a positioned error.
func ManifestHasKind(manifest []byte, kind string) bool {
	for _, doc := range splitDocuments(manifest) {
		var meta metav1.TypeMeta
		if err := yaml.Unmarshal(doc, &meta); err != nil {
			continue
		}
		if meta.Kind == kind {
			return true
		}
	}
	return false
}

// splitDocuments splits a YAML stream on document separators and drops
// empty documents.
func splitDocuments(manifest []byte) [][]byte {
	parts := strings.Split(string(manifest), "\n---")
	docs := make([][]byte, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(strings.TrimPrefix(part, "---"))
		if trimmed == "" {
			continue
		}
		docs = append(docs, []byte(trimmed))
	}
	return docs
}
