// Package auth protects operator endpoints with a shared secret.
// Callers present either the secret itself or a JWT signed with it.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried by tokens
const (
	RoleAdmin = "admin" // Settings changes and job triggers
	RoleCron  = "cron"  // Job triggers only
)

var (
	// ErrMissingToken is returned when no bearer token was sent
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnauthorized is returned when the token's role is insufficient
	ErrUnauthorized = errors.New("unauthorized access")
)

// Claims are the JWT claims of an operator token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	Secret        string        // Shared secret; empty disables checks
	TokenDuration time.Duration // How long generated tokens are valid
}

// Service checks and issues operator credentials.
type Service struct {
	config Config
	now    func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg Config) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = time.Hour
	}
	return &Service{config: cfg, now: time.Now}
}

// Enabled reports whether a secret is configured.
func (s *Service) Enabled() bool {
	return s.config.Secret != ""
}

// GenerateToken issues a signed token for subject with the given role.
func (s *Service) GenerateToken(subject, role string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("no secret configured")
	}
	if !HasRole(role, RoleCron) {
		return "", ErrUnauthorized
	}

	now := s.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "flighttrail",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// ValidateToken validates a JWT and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer("flighttrail"))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Authorize checks an Authorization header value against the required role.
// The raw secret is accepted as an admin credential.
func (s *Service) Authorize(header, required string) (*Claims, error) {
	if !s.Enabled() {
		return &Claims{Role: RoleAdmin}, nil
	}

	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingToken
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Secret)) == 1 {
		return &Claims{Role: RoleAdmin}, nil
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if !HasRole(claims.Role, required) {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Require returns middleware that rejects requests without the given role.
func (s *Service) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.Authorize(r.Header.Get("Authorization"), role)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, ErrUnauthorized) {
					status = http.StatusForbidden
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// HasRole checks if a role grants at least the required role.
// Role hierarchy: Admin > Cron
func HasRole(role, required string) bool {
	level := map[string]int{
		RoleAdmin: 1,
		RoleCron:  0,
	}

	have, ok1 := level[role]
	need, ok2 := level[required]
	if !ok1 || !ok2 {
		return false
	}
	return have >= need
}

type claimsKey struct{}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by Require, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}
