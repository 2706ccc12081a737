package auth

import "github.com/gofiber/fiber/v2"

const claimsLocalsKey = "account_claims"

// WithClaims stores verified access token claims on the request.
func WithClaims(c *fiber.Ctx, claims Claims) {
	c.Locals(claimsLocalsKey, claims)
}

// ClaimsFrom returns the claims stored by WithClaims.
func ClaimsFrom(c *fiber.Ctx) (Claims, bool) {
	claims, ok := c.Locals(claimsLocalsKey).(Claims)
	return claims, ok
}
