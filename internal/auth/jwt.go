package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lbessard/concours/internal/config"
)

// Principal kinds carried in token claims. User tokens come from the public
// register/login endpoints, admin tokens from the administrator login flow.
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// ErrInvalidToken is returned for tokens that fail parsing, signature
// verification, or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the JWT claims for both principal kinds. Subject holds the
// principal id.
type Claims struct {
	Username string `json:"username"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256-signed tokens.
type Manager struct {
	secret   []byte
	userTTL  time.Duration
	adminTTL time.Duration
}

// NewManager creates a token manager from the auth configuration.
func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		userTTL:  cfg.UserTokenTTL,
		adminTTL: cfg.AdminTokenTTL,
	}, nil
}

// IssueUserToken signs a token identifying a user principal.
func (m *Manager) IssueUserToken(id, username string) (string, error) {
	return m.issue(id, username, KindUser, m.userTTL)
}

// IssueAdminToken signs a token identifying an administrator principal.
func (m *Manager) IssueAdminToken(id, username string) (string, error) {
	return m.issue(id, username, KindAdmin, m.adminTTL)
}

func (m *Manager) issue(id, username, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    "concours",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token signature and expiry and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != KindUser && claims.Kind != KindAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
