package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/coldscholor/shared-room/internal/config"
)

// tokenBucketScript refills and consumes atomically so concurrent
// requests against the same bucket cannot double-spend.  KEYS[1] is the
// bucket hash; ARGV are capacity, refill interval in milliseconds, now
// in milliseconds and the key TTL in seconds.  Returns 1 when a token
// was taken, else 0.
var tokenBucketScript = redis.NewScript(`
local bucket = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local refill = math.floor((now - ts) / interval)
if refill > 0 then
  tokens = math.min(capacity, tokens + refill)
  ts = ts + refill * interval
end

local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HMSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('EXPIRE', KEYS[1], ARGV[4])
return allowed
`)

// RateLimit returns a per-caller token bucket backed by redis.  The
// bucket key is the authenticated user id when present, otherwise the
// client IP, so login storms and booking storms are throttled
// separately per source.  A nil client or disabled config yields a
// pass-through middleware; redis outages fail open, a throttle must
// never take the API down with it.
func RateLimit(rdb *redis.Client, cfg config.RateLimitConfig) echo.MiddlewareFunc {
	if rdb == nil || !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var key string
			if uid := UserID(c); uid != 0 {
				key = cfg.Prefix + ":u:" + strconv.FormatUint(uid, 10)
			} else {
				key = cfg.Prefix + ":ip:" + c.RealIP()
			}

			now := time.Now().UnixMilli()
			allowed, err := tokenBucketScript.Run(c.Request().Context(), rdb,
				[]string{key},
				cfg.Capacity,
				cfg.RefillInterval.Milliseconds(),
				now,
				int(cfg.TTL.Seconds()),
			).Int()
			if err != nil {
				return next(c)
			}
			if allowed == 0 {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
