// Package render turns a DeployRequest plus an optional manifest template
// into concrete resource manifests. Substitution is a pure function from
// (template text, value mapping) to rendered text; each call is independent.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kubeship/kubeship/internal/errors"
	"github.com/kubeship/kubeship/pkg/model"
)

// Renderer renders deployment manifests from templates or synthesizes them
// directly from the request.
type Renderer struct{}

// New creates a Renderer.
func New() *Renderer { return &Renderer{} }

// LoadTemplate reads the template file named by the request. A missing file
// is a configuration error that aborts before any cluster call.
func (r *Renderer) LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrConfiguration, err, "manifest template %q", path)
	}
	return string(data), nil
}

// Render substitutes every recognized placeholder in the template text.
// ingressHost is the resolved host, or "" when none is resolvable; in that
// case the ingress block is rendered empty rather than half-filled.
// Unrecognized placeholders pass through untouched.
func (r *Renderer) Render(req model.DeployRequest, templateText, ingressHost string) (string, error) {
	out := renderEnvLines(templateText, req.Env)
	out = renderIngressLines(out, req, ingressHost)
	out = substitute(out, values(req, ingressHost))

	if err := checkResolved(out); err != nil {
		return "", err
	}
	return out, nil
}

// checkResolved rejects output still containing a recognized placeholder —
// that is a rendering defect, not a cluster error.
func checkResolved(rendered string) error {
	for _, token := range []string{
		phImage, phAppName, phContainerName, phNamespace, phPort, phReplicas,
		phServiceType, phCPULimit, phMemoryLimit, phCPURequest, phMemoryRequest,
		phPullSecretName, phVersion, phIngressHost, phIngressSecret,
		phIngressAnnotations, phEnvVars, phIngressBlock,
	} {
		if strings.Contains(rendered, token) {
			return fmt.Errorf("render: unresolved placeholder %s in output", token)
		}
	}
	return nil
}

// renderEnvLines expands the {{ENV_VARS}} placeholder in place. With no env
// pairs the whole line is removed, since an empty env: key is invalid YAML
// in this shape.
func renderEnvLines(template string, env []model.EnvVar) string {
	if !strings.Contains(template, phEnvVars) {
		return template
	}

	lines := strings.Split(template, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		idx := strings.Index(line, phEnvVars)
		if idx < 0 {
			out = append(out, line)
			continue
		}
		if len(env) == 0 {
			continue
		}
		indent := line[:idx]
		out = append(out, envBlock(env, indent))
	}
	return strings.Join(out, "\n")
}

// renderIngressLines expands {{INGRESS_BLOCK}}. When no host is resolvable
// the line is dropped; a half-filled Ingress manifest must never be applied.
func renderIngressLines(template string, req model.DeployRequest, ingressHost string) string {
	if !strings.Contains(template, phIngressBlock) {
		return template
	}

	lines := strings.Split(template, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, phIngressBlock) {
			out = append(out, line)
			continue
		}
		if ingressHost == "" {
			continue
		}
		out = append(out, ingressDocument(req, ingressHost))
	}
	return strings.Join(out, "\n")
}

// ingressDocument renders a standalone Ingress document for the resolved host.
func ingressDocument(req model.DeployRequest, host string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("apiVersion: networking.k8s.io/v1\n")
	b.WriteString("kind: Ingress\n")
	b.WriteString("metadata:\n")
	fmt.Fprintf(&b, "  name: %s\n", req.Name)
	fmt.Fprintf(&b, "  namespace: %s\n", req.Namespace)
	b.WriteString("spec:\n")
	if req.Ingress.TLS {
		b.WriteString("  tls:\n")
		fmt.Fprintf(&b, "  - hosts:\n    - %s\n", host)
		if req.Ingress.SecretName != "" {
			fmt.Fprintf(&b, "    secretName: %s\n", req.Ingress.SecretName)
		}
	}
	b.WriteString("  rules:\n")
	fmt.Fprintf(&b, "  - host: %s\n", host)
	b.WriteString("    http:\n")
	b.WriteString("      paths:\n")
	b.WriteString("      - path: /\n")
	b.WriteString("        pathType: Prefix\n")
	b.WriteString("        backend:\n")
	b.WriteString("          service:\n")
	fmt.Fprintf(&b, "            name: %s\n", req.Name)
	b.WriteString("            port:\n")
	fmt.Fprintf(&b, "              number: %d\n", req.Port)
	return strings.TrimRight(b.String(), "\n")
}

// WriteTemp writes a rendered manifest to a uniquely named temp file. Names
// are time-based plus a random suffix so overlapping runs cannot collide.
// The returned cleanup removes the file.
func WriteTemp(rendered string) (path string, cleanup func(), err error) {
	name := fmt.Sprintf("kubeship-manifest-%d-%s.yaml",
		time.Now().UnixNano(), uuid.NewString()[:8])
	path = filepath.Join(os.TempDir(), name)

	if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
		return "", nil, fmt.Errorf("render: write temp manifest: %w", err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}
