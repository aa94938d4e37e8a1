package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinBurst(t *testing.T) {
	l := NewTokenBucket(3, 60)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d within capacity", i+1)
	}
	assert.False(t, l.Allow("10.0.0.1"), "burst exhausted")
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewTokenBucket(1, 60)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestCapacityDefaultsToRate(t *testing.T) {
	l := NewTokenBucket(0, 2)
	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}
