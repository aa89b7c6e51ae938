package webserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToRate(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("w1"), "request %d should pass", i+1)
	}
	assert.False(t, rl.allow("w1"))
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	assert.True(t, rl.allow("w1"))
	assert.False(t, rl.allow("w1"))
	assert.True(t, rl.allow("w2"))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 10*time.Millisecond)
	assert.True(t, rl.allow("w1"))
	assert.False(t, rl.allow("w1"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, rl.allow("w1"))
}
