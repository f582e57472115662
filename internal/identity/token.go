package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gazette/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrMissingToken indicates no bearer token accompanied the request.
	ErrMissingToken = errors.New("identity: missing token")
	// ErrInvalidToken indicates a malformed or signature-invalid token.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrExpiredToken indicates a token past its validity window.
	ErrExpiredToken = errors.New("identity: token expired")

	errMissingSigningSecret = errors.New("identity: signing secret required")
)

// Claims is the identity snapshot carried inside a bearer token. It is
// trusted as the acting identity for one request without re-reading the
// store; there is no revocation, so a leaked token stays valid until expiry.
type Claims struct {
	UserID     string `json:"userId"`
	UserIDName string `json:"userIdName"`
	Name       string `json:"name"`
	jwt.RegisteredClaims
}

// TokenManagerConfig configures the bearer-token issuer and validator.
type TokenManagerConfig struct {
	SigningSecret []byte
	Issuer        string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenManager issues and validates HS256 bearer tokens.
type TokenManager struct {
	signingSecret []byte
	issuer        string
	tokenTTL      time.Duration
	clock         func() time.Time
}

// NewTokenManager constructs a TokenManager with sane defaults.
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenManager{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        cfg.Issuer,
		tokenTTL:      ttl,
		clock:         clock,
	}, nil
}

// Issue produces a signed token binding the user's identity snapshot.
func (m *TokenManager) Issue(user store.User) (string, error) {
	now := m.clock().UTC()
	claims := Claims{
		UserID:     user.ID,
		UserIDName: user.UserID,
		Name:       user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingSecret)
}

// Validate parses and verifies a bearer token, returning its claims.
func (m *TokenManager) Validate(tokenString string) (Claims, error) {
	trimmed := strings.TrimSpace(tokenString)
	if trimmed == "" {
		return Claims{}, ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(
		trimmed,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
