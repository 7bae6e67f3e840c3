package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUpToMax(t *testing.T) {
	r := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, r.allow("k"))
	}
	assert.False(t, r.allow("k"))
	assert.True(t, r.allow("other"), "keys are limited independently")
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	r := newRateLimiter(2, 50*time.Millisecond)
	assert.True(t, r.allow("k"))
	assert.True(t, r.allow("k"))
	assert.False(t, r.allow("k"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, r.allow("k"), "old entries fall out of the window")
}
