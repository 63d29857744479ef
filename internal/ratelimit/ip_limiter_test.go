package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiterAllowsWithinBurst(t *testing.T) {
	l := NewIPLimiter(1, 3)
	defer l.Close()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1:52000"))
	}
	assert.False(t, l.Allow("10.0.0.1:52000"))
}

func TestIPLimiterTracksAddressesIndependently(t *testing.T) {
	l := NewIPLimiter(1, 1)
	defer l.Close()

	assert.True(t, l.Allow("10.0.0.1:52000"))
	assert.False(t, l.Allow("10.0.0.1:52001")) // same host, different port
	assert.True(t, l.Allow("10.0.0.2:52000"))
}

func TestHostOnly(t *testing.T) {
	assert.Equal(t, "10.0.0.1", hostOnly("10.0.0.1:52000"))
	assert.Equal(t, "::1", hostOnly("[::1]:8080"))
	// Bare host without port passes through.
	assert.Equal(t, "10.0.0.1", hostOnly("10.0.0.1"))
}
