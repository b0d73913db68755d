package config

import (
    "strings"
    "time"
)

// CacheConfig defines settings for the response cache middleware.  The cache
// is only mounted on unauthenticated listing routes (user search and a user's
// public tasks); guarded routes are never cached so authorization is always
// evaluated fresh.  When Enabled is false or no Redis client is configured,
// caching is disabled.  TTL bounds how stale a cached public page may be.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.  All methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:  getenv("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       getenv("CACHE_PREFIX", "tm:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1048576),
    }
}

func parseMethods(s string) map[string]bool {
    m := map[string]bool{}
    for _, p := range strings.Split(s, ",") {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
