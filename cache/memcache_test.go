package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211")

	_, err := mc.client.Get("listings_probe")
	if err != nil && err != memcache.ErrCacheMiss {
		t.Skip("Memcached is not available, skipping test")
	}

	err = mc.Set("listings_key", []byte("value"), 1*time.Second)
	assert.NoError(t, err)

	value, err := mc.Get("listings_key")
	assert.NoError(t, err)
	assert.Equal(t, "value", string(value))

	assert.NoError(t, mc.Delete("listings_key"))
	assert.NoError(t, mc.Delete("listings_key"), "deleting a missing key is not an error")

	_, err = mc.Get("listings_key")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
