package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"10.0.0.4", true},
		{"172.16.0.1", true},
		{"172.31.255.254", true},
		{"172.32.0.1", false},
		{"192.168.1.20", true},
		{"203.0.113.5", false},
		{"not-an-ip", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isPrivateIP(tc.addr), tc.addr)
	}
}

func TestDefaultStrategies_CloudFirstWhenSourced(t *testing.T) {
	chain := DefaultStrategies(staticSource{name: "aws", matches: true, ip: "1.2.3.4"})
	assert.Equal(t, strategyCloudAPI, chain[0].Name())
	assert.Equal(t, strategyInternalIP, chain[len(chain)-1].Name())

	bare := DefaultStrategies()
	assert.Equal(t, strategyExternalIP, bare[0].Name())
}
