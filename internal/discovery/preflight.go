package discovery

import (
	"context"
	"fmt"

	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// permission is one verb/resource pair the preflight verifies.
type permission struct {
	group    string
	resource string
	verb     string
}

// deployPermissions covers the deploy pipeline: namespaces are ensured,
// deployments and services are created or updated.
var deployPermissions = []permission{
	{group: "", resource: "namespaces", verb: "create"},
	{group: "apps", resource: "deployments", verb: "get"},
	{group: "apps", resource: "deployments", verb: "create"},
	{group: "apps", resource: "deployments", verb: "update"},
	{group: "", resource: "services", verb: "create"},
	{group: "", resource: "services", verb: "update"},
}

// rollbackPermissions covers the rollback pipeline: the deployment is read,
// its ReplicaSet history listed, and the undo written back.
var rollbackPermissions = []permission{
	{group: "apps", resource: "deployments", verb: "get"},
	{group: "apps", resource: "deployments", verb: "update"},
	{group: "apps", resource: "replicasets", verb: "list"},
}

// MissingPermissions checks the current identity against the permissions the
// named action needs, via SelfSubjectAccessReview. It returns a description
// per denied permission; an empty result means the preflight passed.
func MissingPermissions(ctx context.Context, client kubernetes.Interface, namespace, action string) ([]string, error) {
	perms := deployPermissions
	if action == "rollback" {
		perms = rollbackPermissions
	}

	var missing []string
	for _, p := range perms {
		allowed, err := checkAccess(ctx, client, namespace, p)
		if err != nil {
			return nil, err
		}
		if !allowed {
			missing = append(missing, fmt.Sprintf("%s %s/%s", p.verb, p.group, p.resource))
		}
	}
	return missing, nil
}

// checkAccess creates a SelfSubjectAccessReview for a single permission.
func checkAccess(ctx context.Context, client kubernetes.Interface, namespace string, p permission) (bool, error) {
	review := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Namespace: namespace,
				Verb:      p.verb,
				Group:     p.group,
				Resource:  p.resource,
			},
		},
	}

	result, err := client.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("SelfSubjectAccessReview for %s/%s verb=%s: %w", p.group, p.resource, p.verb, err)
	}

	return result.Status.Allowed, nil
}
