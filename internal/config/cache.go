package config

import (
	"time"
)

// CacheConfig defines settings for the availability response cache.
// Only GET responses are cached; the TTL is short because a cached
// "available" answer goes stale the moment someone books.  When
// Enabled is false or no Redis client is configured, caching is
// disabled and every request hits the store.
type CacheConfig struct {
	Enabled      bool          // master switch
	TTL          time.Duration // cache entry lifetime
	Prefix       string        // Redis key namespace
	MaxBodyBytes int           // largest response worth caching
}

// LoadCacheConfig reads the CACHE_* variables with defaults tuned for
// the availability endpoint.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getenv("CACHE_ENABLED", "true") == "true",
		TTL:          envDur("CACHE_TTL", 5*time.Second),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
