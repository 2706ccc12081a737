package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/payhasly/account_service/internal/auth"
)

func newTokenService() *auth.Service {
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Issuer:        "payhasly",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	return auth.NewService(issuer, auth.NewMemoryRefreshStore(), nil)
}

func TestJWTAuth(t *testing.T) {
	tokens := newTokenService()
	pair, err := tokens.IssueFor(t.Context(), auth.Claims{ID: "acc-1", Phone: "61234567"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	app := fiber.New()
	app.Use(RequestID())
	app.Get("/me", JWTAuth(tokens), func(c *fiber.Ctx) error {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(claims.ID)
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "access token", header: "Bearer " + pair.AccessToken, want: fiber.StatusOK},
		{name: "lowercase scheme", header: "bearer " + pair.AccessToken, want: fiber.StatusOK},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken, want: fiber.StatusUnauthorized},
		{name: "missing", header: "", want: fiber.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", want: fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.StatusCode)
			}
			if resp.Header.Get(requestIDHeader) == "" {
				t.Fatal("expected a request id on the response")
			}
		})
	}
}
