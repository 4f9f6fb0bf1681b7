package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/user-auth/internal/config"
    "github.com/iliyamo/user-auth/internal/logging"
)

// tokenBucketScript refills and spends one token atomically.
// KEYS[1] bucket key; ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s.
// Returns {allowed, tokens_left, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
    local now, cap, refill, every, ttl =
        tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

    local st = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
    local tokens, ts = tonumber(st[1]), tonumber(st[2])
    if not tokens or not ts then
        tokens, ts = cap, now
    end

    if every > 0 then
        local n = math.floor(math.max(0, now - ts) / every)
        if n > 0 then
            tokens = math.min(cap, tokens + n * refill)
            ts = ts + n * every
        end
    end

    local ok, wait = 0, 0
    if tokens > 0 then
        ok, tokens = 1, tokens - 1
    else
        wait = math.max(0, every - (now - ts))
    end

    redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
    redis.call('EXPIRE', KEYS[1], ttl)
    return { ok, tokens, wait }
`)

type bucketResult struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// NewTokenBucket returns a Redis-backed token-bucket limiter for the
// credential endpoints, which carry no lockout of their own.  Each key (see
// buildRateKey) holds at most cfg.Capacity tokens and regains
// cfg.RefillTokens every cfg.RefillInterval.  A nil rdb or a disabled config
// yields a pass-through; Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb redis.Scripter, log logging.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logging.Nop()
    }
    log = log.With("component", "ratelimit")

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := buildRateKey(cfg, c)

            vals, err := tokenBucketScript.Run(ctx, rdb, []string{key},
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL/time.Second),
            ).Result()
            if err != nil {
                log.Warn(ctx, "redis error; allowing request", "key", key, "err", err)
                return next(c)
            }
            res, ok := parseBucketResult(vals)
            if !ok {
                log.Warn(ctx, "unexpected script result; allowing request", "key", key)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }

            if !res.allowed {
                secs := int(math.Ceil(res.retry.Seconds()))
                h.Set("Retry-After", strconv.Itoa(secs))
                log.Info(ctx, "rate limited", "key", key, "retry_after_s", secs)
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "Too many requests",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

func parseBucketResult(v interface{}) (bucketResult, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketResult{}, false
    }
    retryMs := asInt64(arr[2])
    if retryMs < 0 {
        retryMs = 0
    }
    return bucketResult{
        allowed:   asInt64(arr[0]) == 1,
        remaining: asInt64(arr[1]),
        retry:     time.Duration(retryMs) * time.Millisecond,
    }, true
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64: return t
    case int32: return int64(t)
    case int: return int64(t)
    case float64: return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil { return n }
    }
    return 0
}

// buildRateKey joins the configured identity parts into a Redis key, e.g.
// "auth:rl:ip:10.0.0.1:route:POST /api/auth/sign-in".
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" { ip = "unknown" }
    uid := currentUserID(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    case "ip_user_route":
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    default: // "ip_route"
        parts = append(parts, "ip", ip, "route", route)
    }
    return strings.Join(parts, ":")
}
