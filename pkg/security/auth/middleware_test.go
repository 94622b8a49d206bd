package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoClient() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, logging.GetClient(r.Context()))
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	mw := NewMiddleware(NewTokenValidator(map[string]string{"secret-token": "ci runner"}), nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()

	mw.Handle(echoClient()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ci runner" {
		t.Errorf("client = %q, want %q", rec.Body.String(), "ci runner")
	}
}

func TestMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	mw := NewMiddleware(NewTokenValidator(map[string]string{"secret-token": "desc"}), nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "bearer secret-token")
	rec := httptest.NewRecorder()

	mw.Handle(echoClient()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer other"},
		{"missing scheme", "secret-token"},
		{"basic scheme", "Basic secret-token"},
		{"empty bearer", "Bearer "},
	}

	mw := NewMiddleware(NewTokenValidator(map[string]string{"secret-token": "desc"}), nil, testLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mw.Handle(next).ServeHTTP(rec, req)

			if called {
				t.Error("next handler called for rejected request")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var body providers.ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON body: %v", err)
			}
			if body.Error.Type != ErrorTypeAuthentication || body.Error.Code != CodeInvalidToken {
				t.Errorf("error = %+v", body.Error)
			}
			if body.Error.Message != "Invalid or missing token" {
				t.Errorf("message = %q", body.Error.Message)
			}
		})
	}
}

func TestMiddleware_OpenWhenNoTokens(t *testing.T) {
	mw := NewMiddleware(NewTokenValidator(nil), nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()

	mw.Handle(echoClient()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_CustomSource(t *testing.T) {
	sources := []TokenSource{{Header: "X-API-Key"}}
	mw := NewMiddleware(NewTokenValidator(map[string]string{"k1": "desc"}), sources, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "k1")
	rec := httptest.NewRecorder()

	mw.Handle(echoClient()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_ReloadedTokensApply(t *testing.T) {
	v := NewTokenValidator(map[string]string{"old": "desc"})
	mw := NewMiddleware(v, nil, testLogger())
	handler := mw.Handle(echoClient())

	v.Replace(map[string]string{"new": "desc"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("old token status = %d, want 401", rec.Code)
	}

	req.Header.Set("Authorization", "Bearer new")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("new token status = %d, want 200", rec.Code)
	}
}

func TestGetTokenInfo(t *testing.T) {
	mw := NewMiddleware(NewTokenValidator(map[string]string{"tok": "desc"}), nil, testLogger())

	var got *TokenInfo
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = GetTokenInfo(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	mw.Handle(next).ServeHTTP(httptest.NewRecorder(), req)

	if got == nil || got.Description != "desc" {
		t.Errorf("GetTokenInfo() = %+v", got)
	}

	if _, ok := GetTokenInfo(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Error("GetTokenInfo() ok on bare context")
	}
}
