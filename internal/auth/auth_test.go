package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lbessard/concours/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:     "test-secret",
		UserTokenTTL:  time.Hour,
		AdminTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager(config.AuthConfig{}); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.IssueUserToken("u-1", "alice")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Subject != "u-1" || claims.Username != "alice" || claims.Kind != KindUser {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestAdminTokenKind(t *testing.T) {
	m := newTestManager(t)

	token, err := m.IssueAdminToken("a-1", "root")
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if claims.Kind != KindAdmin {
		t.Errorf("expected admin kind, got %q", claims.Kind)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(config.AuthConfig{
		JWTSecret:     "another-secret",
		UserTokenTTL:  time.Hour,
		AdminTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := other.IssueUserToken("u-1", "alice")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected verification failure for foreign secret")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	m, err := NewManager(config.AuthConfig{
		JWTSecret:     "test-secret",
		UserTokenTTL:  -time.Minute,
		AdminTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.IssueUserToken("u-1", "alice")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected expiry failure")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Parse("not.a.token"); err == nil {
		t.Fatal("expected parse failure")
	}
}

type fakeUserLookup struct {
	principals map[string]*Principal
}

func (f *fakeUserLookup) LookupUser(_ context.Context, id string) (*Principal, error) {
	return f.principals[id], nil
}

type fakeAdminLookup struct {
	principals map[string]*Principal
}

func (f *fakeAdminLookup) LookupAdmin(_ context.Context, id string) (*Principal, error) {
	return f.principals[id], nil
}

func TestRequireUser(t *testing.T) {
	m := newTestManager(t)
	lookup := &fakeUserLookup{principals: map[string]*Principal{
		"u-1": {ID: "u-1", Username: "alice", Kind: KindUser},
	}}

	var got *Principal
	handler := RequireUser(m, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	do := func(authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// No header.
	if rec := do(""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want 401", rec.Code)
	}

	// Malformed header.
	if rec := do("Token abc"); rec.Code != http.StatusUnauthorized {
		t.Errorf("malformed header: got %d, want 401", rec.Code)
	}

	// Valid token for a known user.
	token, err := m.IssueUserToken("u-1", "alice")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}
	if rec := do("Bearer " + token); rec.Code != http.StatusOK {
		t.Fatalf("valid token: got %d, want 200", rec.Code)
	}
	if got == nil || got.ID != "u-1" || got.Username != "alice" {
		t.Errorf("unexpected principal %+v", got)
	}

	// Valid token for an unknown (e.g. deactivated) user.
	ghost, err := m.IssueUserToken("u-ghost", "ghost")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}
	if rec := do("Bearer " + ghost); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: got %d, want 401", rec.Code)
	}

	// Admin token on a user route.
	adminToken, err := m.IssueAdminToken("a-1", "root")
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}
	if rec := do("Bearer " + adminToken); rec.Code != http.StatusUnauthorized {
		t.Errorf("admin token on user route: got %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := newTestManager(t)
	lookup := &fakeAdminLookup{principals: map[string]*Principal{
		"a-1": {ID: "a-1", Username: "root", Kind: KindAdmin},
	}}

	handler := RequireAdmin(m, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/teams", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	adminToken, err := m.IssueAdminToken("a-1", "root")
	if err != nil {
		t.Fatalf("IssueAdminToken failed: %v", err)
	}
	if rec := do(adminToken); rec.Code != http.StatusOK {
		t.Errorf("admin token: got %d, want 200", rec.Code)
	}

	// User tokens never pass an admin gate.
	userToken, err := m.IssueUserToken("u-1", "alice")
	if err != nil {
		t.Fatalf("IssueUserToken failed: %v", err)
	}
	if rec := do(userToken); rec.Code != http.StatusUnauthorized {
		t.Errorf("user token on admin route: got %d, want 401", rec.Code)
	}
}
