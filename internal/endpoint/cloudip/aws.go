package cloudip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	corev1 "k8s.io/api/core/v1"
)

// ec2API is the slice of the EC2 client the source needs; narrowed for tests.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// AWSSource resolves node public IPs through the EC2 API.
type AWSSource struct {
	client ec2API
	logger *slog.Logger
}

// NewAWSSource creates an AWS source with static credentials.
func NewAWSSource(region, accessKeyID, secretAccessKey string) *AWSSource {
	client := ec2.New(ec2.Options{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
	})
	return &AWSSource{
		client: client,
		logger: slog.Default().With("provider", "aws"),
	}
}

// Name returns the source name.
func (s *AWSSource) Name() string { return "aws" }

// Matches reports whether the node's providerID marks it as an EC2 instance.
func (s *AWSSource) Matches(node corev1.Node) bool {
	return strings.HasPrefix(node.Spec.ProviderID, "aws://")
}

// LookupPublicIP resolves the node's EC2 instance and returns its public
// IPv4 address, or "" when none is assigned.
func (s *AWSSource) LookupPublicIP(ctx context.Context, node corev1.Node) (string, error) {
	instanceID := instanceIDFromProviderID(node.Spec.ProviderID)
	if instanceID == "" {
		return "", fmt.Errorf("aws: node %s has no instance ID in providerID %q", node.Name, node.Spec.ProviderID)
	}

	out, err := s.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("aws: describe instance %s: %w", instanceID, err)
	}

	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if inst.PublicIpAddress != nil && *inst.PublicIpAddress != "" {
				return aws.ToString(inst.PublicIpAddress), nil
			}
		}
	}
	s.logger.Debug("instance has no public IP", "instance_id", instanceID)
	return "", nil
}

// instanceIDFromProviderID extracts the trailing instance ID of an
// "aws:///us-east-1a/i-0abc..." providerID.
func instanceIDFromProviderID(providerID string) string {
	idx := strings.LastIndex(providerID, "/")
	if idx < 0 || idx == len(providerID)-1 {
		return ""
	}
	return providerID[idx+1:]
}
