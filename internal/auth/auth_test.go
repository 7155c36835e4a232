package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spendwise/internal/core"
)

const testSecret = "test-secret-at-least-16"

func TestContextIdentity(t *testing.T) {
	var id ContextIdentity
	if _, err := id.CurrentUserID(context.Background()); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	uid, err := id.CurrentUserID(WithUser(context.Background(), "alice"))
	if err != nil || uid != "alice" {
		t.Fatalf("got %q, %v", uid, err)
	}
	if _, err := id.CurrentUserID(WithUser(context.Background(), "  ")); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("blank user must not authenticate, got %v", err)
	}
}

func TestStaticIdentity(t *testing.T) {
	if uid, _ := Static("bob").CurrentUserID(context.Background()); uid != "bob" {
		t.Fatalf("got %q", uid)
	}
	if _, err := Static("").CurrentUserID(context.Background()); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, err := IssueToken(testSecret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	uid, err := ParseToken(testSecret, tok)
	if err != nil || uid != "alice" {
		t.Fatalf("parse: %q %v", uid, err)
	}
	if _, err := ParseToken("another-secret-value", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	// Non-positive ttl falls back to 24h.
	tok, _ := IssueToken(testSecret, "alice", -time.Hour)
	if _, err := ParseToken(testSecret, tok); err != nil {
		t.Fatalf("fallback ttl token should be valid: %v", err)
	}
	short, _ := IssueToken(testSecret, "alice", time.Nanosecond)
	time.Sleep(1100 * time.Millisecond)
	if _, err := ParseToken(testSecret, short); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	tok, _ := IssueToken(testSecret, "alice", time.Hour)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no header", header: "", want: ""},
		{name: "valid bearer", header: "Bearer " + tok, want: "alice"},
		{name: "garbage bearer", header: "Bearer nope", want: ""},
		{name: "basic auth ignored", header: "Basic Zm9vOmJhcg==", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = UserIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/ledger", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Fatalf("user = %q, want %q", got, tt.want)
			}
		})
	}
}
