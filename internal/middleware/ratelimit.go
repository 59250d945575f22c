package middleware

import (
    "net/http"
    "os"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// RateLimit returns a fixed-window limiter over Redis for the payment
// endpoints.  The window key combines the client IP and the route, so a
// single client hammering capture cannot starve refunds.  When rdb is nil
// (Redis unreachable at startup) the middleware is a pass-through; when a
// Redis call fails mid-flight the request is allowed, because a broken
// limiter must not take payments down with it.
//
// RATE_LIMIT_PER_MINUTE overrides the per-window allowance (default 60).
func RateLimit(rdb *redis.Client) echo.MiddlewareFunc {
    limit := 60
    if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            limit = n
        }
    }
    if rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            window := time.Now().UTC().Unix() / 60
            key := "ratelimit:" + c.RealIP() + ":" + c.Path() + ":" + strconv.FormatInt(window, 10)

            n, err := rdb.Incr(ctx, key).Result()
            if err != nil {
                c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
                return next(c)
            }
            if n == 1 {
                // First hit in this window owns the expiry.
                _ = rdb.Expire(ctx, key, time.Minute).Err()
            }
            if n > int64(limit) {
                c.Response().Header().Set("Retry-After", "60")
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error": echo.Map{"kind": "rate_limit", "message": "too many requests"},
                })
            }
            return next(c)
        }
    }
}
