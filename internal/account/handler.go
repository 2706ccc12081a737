package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/payhasly/account_service/internal/auth"
)

// EventSyncHeader is set to "stale" when a write committed but its lifecycle
// events were not published.
const EventSyncHeader = "X-Event-Sync"

// Handler exposes account endpoints.
type Handler struct {
	svc    *Service
	tokens *auth.Service
	logger *slog.Logger
}

// NewHandler constructs an account HTTP handler.
func NewHandler(svc *Service, tokens *auth.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

type signupRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type signupResponse struct {
	User         PublicAccount `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
}

// Register creates an account and issues its first token pair. Admin rights
// cannot be requested at signup.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	acc, err := h.svc.Create(c.UserContext(), CreateInput{Phone: req.Phone, Password: req.Password})
	if err != nil && !Committed(err) {
		return mapError(err)
	}
	markStale(c, err)

	pair, err := h.tokens.IssueFor(c.UserContext(), claimsFor(acc))
	if err != nil {
		h.logger.Error("token issue after signup failed", slog.String("account_id", acc.ID), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "token issue failed")
	}

	return c.Status(http.StatusCreated).JSON(signupResponse{
		User:         ToPublic(acc),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Get returns the public projection of an account.
func (h *Handler) Get(c *fiber.Ctx) error {
	acc, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(ToPublic(acc))
}

// Update applies a partial update. Callers may change their own account;
// admins may change any account and are the only ones who can grant or
// remove admin rights.
func (h *Handler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	claims, err := authorize(c, id)
	if err != nil {
		return err
	}

	var in UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if in.IsAdmin != nil && !claims.IsAdmin {
		return fiber.NewError(http.StatusForbidden, "only admins can change admin rights")
	}

	acc, err := h.svc.Update(c.UserContext(), id, in)
	if err != nil && !Committed(err) {
		return mapError(err)
	}
	markStale(c, err)
	return c.JSON(ToPublic(acc))
}

// Delete removes an account and revokes its refresh token.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := authorize(c, id); err != nil {
		return err
	}

	found, err := h.svc.Delete(c.UserContext(), id)
	if err != nil && !Committed(err) {
		return mapError(err)
	}
	if !found {
		return fiber.NewError(http.StatusNotFound, ErrAccountNotFound.Error())
	}
	markStale(c, err)

	if err := h.tokens.Revoke(c.UserContext(), id); err != nil {
		h.logger.Warn("refresh token revoke failed", slog.String("account_id", id), slog.Any("error", err))
	}
	return c.SendStatus(http.StatusNoContent)
}

func authorize(c *fiber.Ctx, id string) (auth.Claims, error) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return auth.Claims{}, fiber.NewError(http.StatusUnauthorized, "missing credentials")
	}
	if claims.ID != id && !claims.IsAdmin {
		return auth.Claims{}, fiber.NewError(http.StatusForbidden, "not allowed to modify this account")
	}
	return claims, nil
}

func claimsFor(acc Account) auth.Claims {
	return auth.Claims{ID: acc.ID, Phone: acc.Phone, IsAdmin: acc.IsAdmin}
}

func markStale(c *fiber.Ctx, err error) {
	if Committed(err) {
		c.Set(EventSyncHeader, "stale")
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicatePhone):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, "account operation failed")
	}
}
