package config

import "time"

// RateLimitConfig controls the Redis token bucket placed in front of the
// sign-up and sign-in endpoints.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration
    KeyStrategy    string
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables. The defaults allow a
// burst of 10 credential attempts per client and route, refilled one every
// six seconds.
func LoadRateLimitConfig() RateLimitConfig {
    def := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "auth:rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    // RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthands that win
    // over the explicit settings.
    if burst := envInt("RATE_LIMIT_BURST", -1); burst > 0 {
        def.Capacity = burst
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        def.RefillTokens, def.RefillInterval = 1, every
    }
    return def.normalized()
}

// normalized clamps values the Lua script cannot work with and keeps idle
// buckets alive for at least five refill intervals.
func (c RateLimitConfig) normalized() RateLimitConfig {
    c.Capacity = max(c.Capacity, 1)
    c.RefillTokens = max(c.RefillTokens, 1)
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    c.TTL = max(c.TTL, 5*c.RefillInterval)
    return c
}
