package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func metricsRequest(user, pass string) *http.Request {
	req := httptest.NewRequest("GET", "/metrics", nil)
	if user != "" || pass != "" {
		req.SetBasicAuth(user, pass)
	}
	return req
}

func TestMetricsAuth_AllowsValidCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("admin", "secret123")

	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("metrics data"))
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, metricsRequest("admin", "secret123"))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "metrics data" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestMetricsAuth_RejectsBadCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("admin", "secret123")

	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without valid credentials")
	}))

	tests := []struct {
		name string
		user string
		pass string
	}{
		{"no credentials", "", ""},
		{"wrong username", "wronguser", "secret123"},
		{"wrong password", "admin", "wrongpassword"},
		{"both wrong", "wrong", "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, metricsRequest(tt.user, tt.pass))

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMetricsAuth_SendsChallengeHeader(t *testing.T) {
	mw := NewMetricsAuthMiddleware("admin", "secret123")
	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, metricsRequest("", ""))

	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="metrics"` {
		t.Errorf("unexpected WWW-Authenticate header %q", got)
	}
}

func TestMetricsAuth_DisabledWhenUnconfigured(t *testing.T) {
	mw := NewMetricsAuthMiddleware("", "")

	called := false
	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, metricsRequest("", ""))

	if !called {
		t.Error("handler should run when auth is not configured")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsAuth_MalformedAuthorizationHeader(t *testing.T) {
	mw := NewMetricsAuthMiddleware("admin", "secret123")
	wrapped := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Authorization", "Basic notvalidbase64!!!")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
