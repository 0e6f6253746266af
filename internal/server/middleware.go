package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/spleety/spleety/internal/keys"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// walletKey is the context key for the authenticated wallet address.
const walletKey contextKey = "wallet"

// WalletFromContext extracts the authenticated wallet address from the
// context. The second return is false for unauthenticated requests.
func WalletFromContext(ctx context.Context) (keys.Address, bool) {
	addr, ok := ctx.Value(walletKey).(keys.Address)
	return addr, ok
}

// requireAuth validates the Bearer session token and adds the wallet address
// to the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), walletKey, addr)))
	}
}

// optionalAuth adds the wallet to the context when a valid token is present
// but lets unauthenticated requests through.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if addr, err := s.authenticate(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), walletKey, addr))
		}
		next(w, r)
	}
}

func (s *Server) authenticate(r *http.Request) (keys.Address, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return keys.ZeroAddress, ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return keys.ZeroAddress, ErrInvalidToken
	}
	claims, err := s.jwt.Validate(parts[1])
	if err != nil {
		return keys.ZeroAddress, err
	}
	return keys.ParseAddress(claims.Wallet)
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs every request with its outcome and duration, and
// feeds the request-duration histogram. Registered on the router with Use so
// the matched route is available; the histogram is labeled with the route
// template, not the raw path, to keep label cardinality bounded.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		requestDuration.WithLabelValues(r.Method, routeTemplate(r)).Observe(elapsed.Seconds())
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

// routeTemplate returns the matched route's path template, e.g.
// "/api/expenses/{address}/pay".
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
