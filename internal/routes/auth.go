package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payhasly/account_service/internal/auth"
)

// RegisterAuthRoutes wires token endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/auth")
	group.Post("/refresh", h.Refresh)
}
