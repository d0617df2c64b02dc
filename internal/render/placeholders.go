package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kubeship/kubeship/pkg/model"
)

// Recognized template placeholders. Tokens outside this set pass through
// untouched.
const (
	phImage              = "{{IMAGE}}"
	phAppName            = "{{APP_NAME}}"
	phContainerName      = "{{CONTAINER_NAME}}"
	phNamespace          = "{{NAMESPACE}}"
	phPort               = "{{PORT}}"
	phReplicas           = "{{REPLICAS}}"
	phServiceType        = "{{SERVICE_TYPE}}"
	phCPULimit           = "{{CPU_LIMIT}}"
	phMemoryLimit        = "{{MEMORY_LIMIT}}"
	phCPURequest         = "{{CPU_REQUEST}}"
	phMemoryRequest      = "{{MEMORY_REQUEST}}"
	phPullSecretName     = "{{PULL_SECRET_NAME}}"
	phVersion            = "{{VERSION}}"
	phIngressHost        = "{{INGRESS_HOST}}"
	phIngressSecret      = "{{INGRESS_SECRET}}"
	phIngressAnnotations = "{{INGRESS_ANNOTATIONS}}"

	// Block placeholders handled line-wise, not by plain substitution.
	phEnvVars      = "{{ENV_VARS}}"
	phIngressBlock = "{{INGRESS_BLOCK}}"
)

// values builds the plain substitution mapping for a request and its
// computed ingress host. Pure function.
func values(req model.DeployRequest, ingressHost string) map[string]string {
	version := req.Version
	if version == "" {
		version = versionFromImage(req.Image)
	}

	return map[string]string{
		phImage:              req.Image,
		phAppName:            req.Name,
		phContainerName:      req.ContainerName,
		phNamespace:          req.Namespace,
		phPort:               strconv.Itoa(int(req.Port)),
		phReplicas:           strconv.Itoa(int(req.Replicas)),
		phServiceType:        string(req.ServiceType),
		phCPULimit:           req.Resources.CPULimit,
		phMemoryLimit:        req.Resources.MemoryLimit,
		phCPURequest:         req.Resources.CPURequest,
		phMemoryRequest:      req.Resources.MemoryRequest,
		phPullSecretName:     req.PullSecretName,
		phVersion:            version,
		phIngressHost:        ingressHost,
		phIngressSecret:      req.Ingress.SecretName,
		phIngressAnnotations: "",
	}
}

// versionFromImage extracts the tag of an image reference, defaulting to
// "latest". The digest form rejects tags, so everything after '@' wins.
func versionFromImage(image string) string {
	if at := strings.LastIndex(image, "@"); at >= 0 {
		return image[at+1:]
	}
	// The last ':' after the last '/' is the tag separator; a ':' before
	// that belongs to a registry port.
	slash := strings.LastIndex(image, "/")
	colon := strings.LastIndex(image, ":")
	if colon > slash {
		return image[colon+1:]
	}
	return "latest"
}

// substitute replaces every recognized placeholder with its value.
// Unrecognized {{...}} tokens are left untouched.
func substitute(template string, vals map[string]string) string {
	out := template
	for token, value := range vals {
		out = strings.ReplaceAll(out, token, value)
	}
	return out
}

// envBlock renders one name/value entry per env pair at the given indent.
func envBlock(env []model.EnvVar, indent string) string {
	var b strings.Builder
	b.WriteString(indent + "env:\n")
	for _, ev := range env {
		fmt.Fprintf(&b, "%s- name: %s\n", indent, ev.Name)
		fmt.Fprintf(&b, "%s  value: %q\n", indent, ev.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
