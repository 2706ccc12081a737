package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/payhasly/account_service/internal/telemetry"
)

var (
	// ErrRefreshRevoked means the refresh token verified but is no longer the
	// active one for its account.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrUnknownAccount is returned by a ClaimsLoader for an account that no
	// longer exists.
	ErrUnknownAccount = errors.New("account no longer exists")
)

// ClaimsLoader reads the current claims of an account from its store.
type ClaimsLoader func(ctx context.Context, accountID string) (Claims, error)

// Service pairs the issuer with the refresh token store.
type Service struct {
	issuer     *Issuer
	store      RefreshStore
	metrics    *telemetry.Metrics
	loadClaims ClaimsLoader
}

func NewService(issuer *Issuer, store RefreshStore, metrics *telemetry.Metrics) *Service {
	return &Service{issuer: issuer, store: store, metrics: metrics}
}

// WithClaimsLoader makes Rotate issue the new pair from the account as
// currently stored instead of the claims carried by the refresh token.
func (s *Service) WithClaimsLoader(loader ClaimsLoader) *Service {
	s.loadClaims = loader
	return s
}

// IssueFor issues a token pair and records its refresh token as the active
// one for the account, replacing any earlier record.
func (s *Service) IssueFor(ctx context.Context, c Claims) (TokenPair, error) {
	pair, err := s.issuer.Issue(c)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Save(ctx, RefreshToken{AccountID: c.ID, Token: pair.RefreshToken, ExpiresAt: pair.RefreshExpiresAt}); err != nil {
		return TokenPair{}, err
	}
	s.metrics.IncTokensIssued("issue")
	return pair, nil
}

// GetRefreshToken looks up the active refresh token of an account. A missing
// record is reported through ok, not as an error.
func (s *Service) GetRefreshToken(ctx context.Context, accountID string) (RefreshToken, bool, error) {
	return s.store.FindByAccount(ctx, accountID)
}

// Rotate exchanges the active refresh token for a new pair. The presented
// token stops being valid once the new pair is stored. With a ClaimsLoader
// the new pair reflects the account's current phone and admin flag; a
// deleted account loses its refresh token.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.issuer.Verify(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	current, ok, err := s.store.FindByAccount(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok || subtle.ConstantTimeCompare([]byte(current.Token), []byte(refreshToken)) != 1 {
		return TokenPair{}, ErrRefreshRevoked
	}

	if s.loadClaims != nil {
		fresh, err := s.loadClaims(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, ErrUnknownAccount) {
				if err := s.store.Delete(ctx, claims.ID); err != nil {
					return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
				}
				return TokenPair{}, ErrRefreshRevoked
			}
			return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
		}
		fresh.ID = claims.ID
		claims = fresh
	}

	pair, err := s.issuer.Issue(claims)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Save(ctx, RefreshToken{AccountID: claims.ID, Token: pair.RefreshToken, ExpiresAt: pair.RefreshExpiresAt}); err != nil {
		return TokenPair{}, err
	}
	s.metrics.IncTokensIssued("rotate")
	return pair, nil
}

// Revoke drops the active refresh token of an account.
func (s *Service) Revoke(ctx context.Context, accountID string) error {
	return s.store.Delete(ctx, accountID)
}

// VerifyAccess validates an access token and returns its claims.
func (s *Service) VerifyAccess(token string) (Claims, error) {
	return s.issuer.Verify(token, KindAccess)
}
