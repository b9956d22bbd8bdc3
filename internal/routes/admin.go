package routes

import (
	"crypto/subtle"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/identity"
)

const adminKeyHeader = "X-Admin-Key"

// RegisterAdminRoutes wires account approval. Without an admin key the routes are not mounted.
func RegisterAdminRoutes(r fiber.Router, h *identity.Handler, adminKey string) {
	if adminKey == "" {
		return
	}
	group := r.Group("/admin", func(c *fiber.Ctx) error {
		if subtle.ConstantTimeCompare([]byte(c.Get(adminKeyHeader)), []byte(adminKey)) != 1 {
			return fiber.NewError(http.StatusUnauthorized, "invalid admin key")
		}
		return c.Next()
	})
	group.Post("/accounts/approve", h.Approve)
}
