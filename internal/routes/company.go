package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/company"
	"github.com/docuhub/portal/internal/middleware"
)

// RegisterCompanyRoutes wires the authenticated company association endpoints. With Redis
// available, association requests are idempotent per Idempotency-Key.
func RegisterCompanyRoutes(r fiber.Router, h *company.Handler, bearer fiber.Handler, d Deps) {
	group := r.Group("/companies/my-companies", bearer)
	group.Get("", h.Mine)
	if d.Cache != nil {
		group.Post("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger), h.Associate)
	} else {
		group.Post("", h.Associate)
	}
}
