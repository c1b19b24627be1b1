package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// WalletRateLimit caps mutations per wallet per minute using a Redis counter.
// It is a no-op without Redis and fails open on cache errors.
func WalletRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		walletID := c.Params("id")
		if walletID == "" {
			return c.Next()
		}

		ctx := c.UserContext()
		key := "rl:wallet:" + walletID
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable", "wallet_id", walletID, "error", err)
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, rateLimitWindow)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "Too many requests for this wallet, try again later")
		}
		return c.Next()
	}
}
