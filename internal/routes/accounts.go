package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/payhasly/account_service/internal/account"
)

// RegisterAccountRoutes wires account lifecycle endpoints. Signup is public;
// changes to an existing account need an access token.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, jwtAuth, idempotency fiber.Handler) {
	group := r.Group("/accounts")
	group.Post("", idempotency, h.Register)
	group.Get("/:id", h.Get)
	group.Patch("/:id", jwtAuth, h.Update)
	group.Delete("/:id", jwtAuth, h.Delete)
}
