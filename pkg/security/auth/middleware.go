package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"meridian-hq/nexus/pkg/providers"
	"meridian-hq/nexus/pkg/telemetry/logging"
)

// TokenSource defines where to extract a client token from.
type TokenSource struct {
	// Header is the header name
	Header string

	// Scheme is the required value prefix, e.g. "Bearer" (optional)
	Scheme string
}

// DefaultSources accepts "Authorization: Bearer <token>".
var DefaultSources = []TokenSource{{Header: "Authorization", Scheme: "Bearer"}}

// Authentication error codes.
const (
	ErrorTypeAuthentication = "authentication_error"
	CodeInvalidToken        = "invalid_token"
)

// Middleware enforces the token allow-list. When the store is open every
// request passes.
type Middleware struct {
	store   TokenStore
	sources []TokenSource
	logger  *slog.Logger
}

// NewMiddleware creates the middleware. Nil sources use DefaultSources.
func NewMiddleware(store TokenStore, sources []TokenSource, logger *slog.Logger) *Middleware {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{store: store, sources: sources, logger: logger}
}

// Handle wraps next with token authentication.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.store.Open() {
			next.ServeHTTP(w, r)
			return
		}

		token := m.extractToken(r)
		info, err := m.store.Validate(token)
		if err != nil {
			m.logger.WarnContext(r.Context(), "Rejected request with invalid or missing token",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"token_present", token != "",
			)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), tokenInfoKey, info)
		ctx = logging.WithClient(ctx, info.Description)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) extractToken(r *http.Request) string {
	for _, source := range m.sources {
		value := strings.TrimSpace(r.Header.Get(source.Header))
		if value == "" {
			continue
		}
		if source.Scheme == "" {
			return value
		}
		scheme, token, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, source.Scheme) {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="nexus"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(providers.ErrorBody{Error: providers.ErrorDetail{
		Message: "Invalid or missing token",
		Type:    ErrorTypeAuthentication,
		Code:    CodeInvalidToken,
	}})
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const tokenInfoKey contextKey = "token_info"

// GetTokenInfo retrieves the authenticated token from the request context.
func GetTokenInfo(ctx context.Context) (*TokenInfo, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*TokenInfo)
	return info, ok
}
