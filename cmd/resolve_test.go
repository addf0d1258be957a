package cmd

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver replaces the lookups for the duration of a test
func stubResolver(t *testing.T, ip net.IP, names []string, lookupErr error) {
	prevResolve, prevLookup := resolveIPAddr, lookupAddr
	t.Cleanup(func() {
		resolveIPAddr, lookupAddr = prevResolve, prevLookup
	})

	resolveIPAddr = func(network, address string) (*net.IPAddr, error) {
		if ip == nil {
			return nil, errors.New("no such host")
		}
		return &net.IPAddr{IP: ip}, nil
	}
	lookupAddr = func(addr string) ([]string, error) {
		return names, lookupErr
	}
}

func TestResolveWithName(t *testing.T) {
	stubResolver(t, targetIP, []string{"target.example.", "alias.example."}, nil)

	addr, host, err := resolve("target")
	require.NoError(t, err)
	assert.True(t, targetIP.Equal(addr.IP))
	assert.Equal(t, "target.example", host)
}

func TestResolveWithoutName(t *testing.T) {
	stubResolver(t, targetIP, nil, errors.New("no PTR record"))

	addr, host, err := resolve("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, targetIP.Equal(addr.IP))
	assert.Equal(t, "10.0.0.1", host)
}

func TestResolveFailure(t *testing.T) {
	stubResolver(t, nil, nil, nil)

	addr, _, err := resolve("nowhere.invalid")
	assert.Nil(t, addr)
	assert.ErrorContains(t, err, "nowhere.invalid")
}
