package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/docuhub/portal/internal/auth"
)

// RegisterAuthRoutes wires registration, login and OTP endpoints. Credential and code
// checks go through the rate limiter.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	group.Post("/login", rateLimiter, h.Login)
	group.Post("/verify-otp", rateLimiter, h.VerifyOTP)
	group.Post("/verify-login-otp", rateLimiter, h.VerifyLoginOTP)
	group.Post("/resend-otp", rateLimiter, h.ResendOTP)
}
