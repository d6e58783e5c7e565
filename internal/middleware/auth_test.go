package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/verityair/concierge/internal/auth"
	"github.com/verityair/concierge/internal/domain"
)

// fakeAccountService resolves exactly one token to one account.
type fakeAccountService struct {
	token   string
	account *domain.Account
}

func (f *fakeAccountService) Register(ctx context.Context, params domain.RegisterParams) (*domain.Account, error) {
	return nil, nil
}

func (f *fakeAccountService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	return nil, nil
}

func (f *fakeAccountService) Logout(ctx context.Context, token string) error {
	return nil
}

func (f *fakeAccountService) GetByToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == f.token {
		return f.account, nil
	}
	return nil, domain.Unauthorized("account.get_by_token", "Invalid or expired session")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Bearer Token Extraction Tests
// =============================================================================

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
		{"trims token whitespace", "Bearer   abc123  ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// =============================================================================
// WithAccount Middleware Tests
// =============================================================================

func TestWithAccount_LoadsAccountFromToken(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), Email: "a@example.com"}
	mw := NewAuthMiddleware(&fakeAccountService{token: "tok123", account: account}, testLogger())

	var got *domain.Account
	handler := mw.WithAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.GetAccount(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer tok123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.ID != account.ID {
		t.Errorf("expected account in context, got %+v", got)
	}
}

func TestWithAccount_ContinuesWithoutToken(t *testing.T) {
	mw := NewAuthMiddleware(&fakeAccountService{}, testLogger())

	called := false
	handler := mw.WithAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if auth.GetAccount(r.Context()) != nil {
			t.Error("expected no account in context")
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/tiers", nil))
	if !called {
		t.Error("handler should run for unauthenticated requests")
	}
}

func TestWithAccount_ContinuesOnInvalidToken(t *testing.T) {
	mw := NewAuthMiddleware(&fakeAccountService{token: "tok123"}, testLogger())

	called := false
	handler := mw.WithAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if auth.GetAccount(r.Context()) != nil {
			t.Error("expected no account for a bad token")
		}
	}))

	req := httptest.NewRequest("GET", "/api/tiers", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should run even with an invalid token")
	}
}

// =============================================================================
// RequireAccount Middleware Tests
// =============================================================================

func TestRequireAccount_RejectsAnonymous(t *testing.T) {
	mw := NewAuthMiddleware(&fakeAccountService{}, testLogger())

	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for anonymous requests")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/profile", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error.Code != "unauthorized" {
		t.Errorf("expected unauthorized code, got %q", body.Error.Code)
	}
}

func TestRequireAccount_PassesAuthenticated(t *testing.T) {
	mw := NewAuthMiddleware(&fakeAccountService{}, testLogger())
	account := &domain.Account{ID: uuid.New()}

	called := false
	handler := mw.RequireAccount(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/api/profile", nil)
	req = req.WithContext(auth.SetAccount(req.Context(), account))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("handler should run for authenticated requests")
	}
}

// =============================================================================
// Stack Composition Tests
// =============================================================================

func TestStack_AppliesInOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(tag("outer"), tag("middle"), tag("inner"))
	handler := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"outer", "middle", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}
