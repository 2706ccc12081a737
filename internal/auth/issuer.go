package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrSigning      = errors.New("token signing failed")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Kind separates the two signing contexts. Access and refresh tokens use
// different keys and audiences, so one never verifies as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the identity embedded in both tokens.
type Claims struct {
	ID      string
	Phone   string
	IsAdmin bool
}

// TokenPair is returned once at issuance and never persisted as a whole.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	ExpiresIn        int64     `json:"expiresIn"`
	RefreshExpiresAt time.Time `json:"-"`
}

type tokenClaims struct {
	AccountID string `json:"id"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// IssuerConfig holds the signing material for both token kinds.
type IssuerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Issuer signs and verifies HS256 token pairs.
type Issuer struct {
	cfg IssuerConfig
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}
}

// Issue signs an access token and a refresh token for the same claims. It has
// no side effects.
func (i *Issuer) Issue(c Claims) (TokenPair, error) {
	now := i.cfg.Now()

	access, err := i.sign(c, KindAccess, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.sign(c, KindRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(i.cfg.AccessTTL.Seconds()),
		RefreshExpiresAt: now.Add(i.cfg.RefreshTTL).UTC(),
	}, nil
}

// Verify checks signature, issuer, audience and expiry for the given kind and
// returns the embedded claims.
func (i *Issuer) Verify(token string, kind Kind) (Claims, error) {
	secret, _ := i.signingContext(kind)
	if len(secret) == 0 {
		return Claims{}, fmt.Errorf("%w: no %s key", ErrInvalidToken, kind)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(i.audience(kind)),
		jwt.WithTimeFunc(i.cfg.Now),
		jwt.WithExpirationRequired(),
	}
	if i.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.cfg.Issuer))
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || tc.AccountID == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{ID: tc.AccountID, Phone: tc.Phone, IsAdmin: tc.IsAdmin}, nil
}

func (i *Issuer) sign(c Claims, kind Kind, now time.Time) (string, error) {
	secret, ttl := i.signingContext(kind)
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: no %s key", ErrSigning, kind)
	}

	claims := tokenClaims{
		AccountID: c.ID,
		Phone:     c.Phone,
		IsAdmin:   c.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   c.ID,
			Audience:  jwt.ClaimStrings{i.audience(kind)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

func (i *Issuer) signingContext(kind Kind) ([]byte, time.Duration) {
	if kind == KindRefresh {
		return i.cfg.RefreshSecret, i.cfg.RefreshTTL
	}
	return i.cfg.AccessSecret, i.cfg.AccessTTL
}

func (i *Issuer) audience(kind Kind) string {
	if i.cfg.Issuer == "" {
		return string(kind)
	}
	return i.cfg.Issuer + ":" + string(kind)
}
