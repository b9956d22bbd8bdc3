package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

// LoginRateLimit caps credential and code attempts per email and endpoint within a
// one-minute window. Requests without an email are keyed by IP. Without Redis it is a
// no-op, and cache errors let the request through.
func LoginRateLimit(cache *redis.Client, maxPerWindow int) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Email string `json:"email"`
		}
		_ = c.BodyParser(&req)
		subject := strings.ToLower(strings.TrimSpace(req.Email))
		if subject == "" {
			subject = "ip:" + c.IP()
		}
		endpoint := c.Path()[strings.LastIndex(c.Path(), "/")+1:]
		key := "docuhub:rl:" + endpoint + ":" + subject

		ctx := c.UserContext()
		count, err := cache.Incr(ctx, key).Result()
		if err != nil {
			return c.Next()
		}
		if count == 1 {
			cache.Expire(ctx, key, rateLimitWindow)
		}
		if count > int64(maxPerWindow) {
			wait, err := cache.TTL(ctx, key).Result()
			if err != nil || wait <= 0 {
				wait = rateLimitWindow
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int((wait+time.Second-1)/time.Second)))
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}
