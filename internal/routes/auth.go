package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kasa-pay/kasa_pay/internal/auth"
)

// RegisterAuthRoutes wires public registration and login endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, limiter fiber.Handler) {
	r.Post("/auth/register", limiter, h.Register)
	r.Post("/auth/login", limiter, h.Login)
}
