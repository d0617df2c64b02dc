package cloudip

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/digitalocean/godo"
	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corev1 "k8s.io/api/core/v1"
)

func nodeWithProviderID(providerID string) corev1.Node {
	node := corev1.Node{}
	node.Name = "worker-1"
	node.Spec.ProviderID = providerID
	return node
}

type fakeEC2 struct {
	publicIP string
	err      error
	gotIDs   []string
}

func (f *fakeEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.gotIDs = params.InstanceIds
	if f.err != nil {
		return nil, f.err
	}
	inst := ec2types.Instance{}
	if f.publicIP != "" {
		inst.PublicIpAddress = aws.String(f.publicIP)
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: []ec2types.Instance{inst}}},
	}, nil
}

func TestAWSSource_LookupPublicIP(t *testing.T) {
	api := &fakeEC2{publicIP: "203.0.113.40"}
	src := &AWSSource{client: api, logger: slog.Default()}
	node := nodeWithProviderID("aws:///us-east-1a/i-0abc123")

	assert.True(t, src.Matches(node))

	ip, err := src.LookupPublicIP(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.40", ip)
	assert.Equal(t, []string{"i-0abc123"}, api.gotIDs)
}

func TestAWSSource_NoPublicIP(t *testing.T) {
	src := &AWSSource{client: &fakeEC2{}, logger: slog.Default()}

	ip, err := src.LookupPublicIP(context.Background(), nodeWithProviderID("aws:///us-east-1a/i-0abc123"))
	require.NoError(t, err)
	assert.Empty(t, ip)
}

func TestAWSSource_APIError(t *testing.T) {
	src := &AWSSource{client: &fakeEC2{err: fmt.Errorf("throttled")}, logger: slog.Default()}

	_, err := src.LookupPublicIP(context.Background(), nodeWithProviderID("aws:///us-east-1a/i-0abc123"))
	assert.Error(t, err)
}

func TestInstanceIDFromProviderID(t *testing.T) {
	assert.Equal(t, "i-0abc123", instanceIDFromProviderID("aws:///us-east-1a/i-0abc123"))
	assert.Empty(t, instanceIDFromProviderID("aws:///us-east-1a/"))
	assert.Empty(t, instanceIDFromProviderID("no-slashes"))
}

type fakeDroplets struct {
	droplet *godo.Droplet
	err     error
}

func (f *fakeDroplets) Get(_ context.Context, _ int) (*godo.Droplet, *godo.Response, error) {
	return f.droplet, nil, f.err
}

func TestDigitalOceanSource_LookupPublicIP(t *testing.T) {
	droplet := &godo.Droplet{
		ID: 42,
		Networks: &godo.Networks{
			V4: []godo.NetworkV4{
				{IPAddress: "10.128.0.3", Type: "private"},
				{IPAddress: "198.51.100.9", Type: "public"},
			},
		},
	}
	src := &DigitalOceanSource{droplets: &fakeDroplets{droplet: droplet}, logger: slog.Default()}
	node := nodeWithProviderID("digitalocean://42")

	assert.True(t, src.Matches(node))

	ip, err := src.LookupPublicIP(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.9", ip)
}

func TestDigitalOceanSource_BadProviderID(t *testing.T) {
	src := &DigitalOceanSource{droplets: &fakeDroplets{}, logger: slog.Default()}

	_, err := src.LookupPublicIP(context.Background(), nodeWithProviderID("digitalocean://not-a-number"))
	assert.Error(t, err)
}

type fakeServers struct {
	server *hcloud.Server
	err    error
}

func (f *fakeServers) GetByID(_ context.Context, _ int64) (*hcloud.Server, *hcloud.Response, error) {
	return f.server, nil, f.err
}

func TestHetznerSource_LookupPublicIP(t *testing.T) {
	server := &hcloud.Server{ID: 7}
	server.PublicNet.IPv4.IP = net.ParseIP("198.51.100.10")
	src := &HetznerSource{servers: &fakeServers{server: server}, logger: slog.Default()}
	node := nodeWithProviderID("hcloud://7")

	assert.True(t, src.Matches(node))

	ip, err := src.LookupPublicIP(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.10", ip)
}

func TestHetznerSource_NoPublicIP(t *testing.T) {
	src := &HetznerSource{servers: &fakeServers{server: &hcloud.Server{ID: 7}}, logger: slog.Default()}

	ip, err := src.LookupPublicIP(context.Background(), nodeWithProviderID("hcloud://7"))
	require.NoError(t, err)
	assert.Empty(t, ip)
}

func TestSources_OnlyCredentialedProviders(t *testing.T) {
	assert.Empty(t, Sources(Credentials{}))

	srcs := Sources(Credentials{HetznerToken: "token"})
	require.Len(t, srcs, 1)
	assert.Equal(t, "hetzner", srcs[0].Name())

	srcs = Sources(Credentials{
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "AKIA",
		AWSSecretAccessKey: "secret",
		DigitalOceanToken:  "token",
	})
	assert.Len(t, srcs, 2)
}

func TestDetectProvider(t *testing.T) {
	assert.Equal(t, "aws", DetectProvider([]corev1.Node{nodeWithProviderID("aws:///us-east-1a/i-1")}))
	assert.Equal(t, "digitalocean", DetectProvider([]corev1.Node{nodeWithProviderID("digitalocean://42")}))
	assert.Equal(t, "hetzner", DetectProvider([]corev1.Node{nodeWithProviderID("hcloud://7")}))
	assert.Empty(t, DetectProvider([]corev1.Node{nodeWithProviderID("")}))
	assert.Empty(t, DetectProvider(nil))
}
