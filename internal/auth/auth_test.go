package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestTokenRoundTrip tests token generation and validation.
func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(Config{Secret: "s3cret", TokenDuration: time.Hour})

	token, err := svc.GenerateToken("scheduler", RoleCron)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Role != RoleCron || claims.Subject != "scheduler" {
		t.Errorf("Unexpected claims %+v", claims)
	}

	other := NewService(Config{Secret: "different"})
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
	}

	if _, err := svc.GenerateToken("x", "superuser"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected unknown role to be refused, got %v", err)
	}
	if _, err := NewService(Config{}).GenerateToken("x", RoleCron); err == nil {
		t.Error("Expected error without a secret")
	}
}

// TestTokenExpiry tests that expired tokens are rejected.
func TestTokenExpiry(t *testing.T) {
	svc := NewService(Config{Secret: "s3cret", TokenDuration: time.Minute})
	issued := time.Now().Add(-2 * time.Minute)
	svc.now = func() time.Time { return issued }

	token, err := svc.GenerateToken("scheduler", RoleCron)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}
}

// TestAuthorize tests header checks for each credential kind.
func TestAuthorize(t *testing.T) {
	svc := NewService(Config{Secret: "s3cret"})
	cronToken, _ := svc.GenerateToken("scheduler", RoleCron)
	adminToken, _ := svc.GenerateToken("ops", RoleAdmin)

	tests := []struct {
		name     string
		header   string
		required string
		wantErr  error
	}{
		{"Raw secret", "Bearer s3cret", RoleAdmin, nil},
		{"Lower-case scheme", "bearer s3cret", RoleCron, nil},
		{"Wrong secret", "Bearer nope", RoleCron, ErrInvalidToken},
		{"Missing header", "", RoleCron, ErrMissingToken},
		{"Basic auth", "Basic czNjcmV0", RoleCron, ErrMissingToken},
		{"Cron token for cron", "Bearer " + cronToken, RoleCron, nil},
		{"Cron token for admin", "Bearer " + cronToken, RoleAdmin, ErrUnauthorized},
		{"Admin token for cron", "Bearer " + adminToken, RoleCron, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authorize(tt.header, tt.required)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Expected success, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	open := NewService(Config{})
	if _, err := open.Authorize("", RoleAdmin); err != nil {
		t.Errorf("Expected open access without a secret, got %v", err)
	}
}

// TestRequire tests the HTTP middleware.
func TestRequire(t *testing.T) {
	svc := NewService(Config{Secret: "s3cret"})
	cronToken, _ := svc.GenerateToken("scheduler", RoleCron)

	handler := svc.Require(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.Role != RoleAdmin {
			t.Errorf("Expected admin claims in context, got %+v", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer " + cronToken, http.StatusForbidden},
		{"Bearer s3cret", http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("Header %q: expected %d, got %d", tt.header, tt.want, rec.Code)
		}
	}
}

// TestHasRole tests the role hierarchy.
func TestHasRole(t *testing.T) {
	if !HasRole(RoleAdmin, RoleCron) || !HasRole(RoleAdmin, RoleAdmin) || !HasRole(RoleCron, RoleCron) {
		t.Error("Expected granted roles")
	}
	if HasRole(RoleCron, RoleAdmin) || HasRole("guest", RoleCron) {
		t.Error("Expected refused roles")
	}
}
