package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/notification"
)

// RegisterNotificationRoutes wires the notification panel endpoints.
func RegisterNotificationRoutes(r fiber.Router, h *notification.Handler, bearer fiber.Handler) {
	group := r.Group("/notification", bearer)
	group.Get("", h.List)
	group.Delete("", h.Clear)
	group.Put("/:id/read", h.MarkRead)
	group.Delete("/:id", h.Delete)
}
