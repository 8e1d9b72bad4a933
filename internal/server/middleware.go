package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/postboard/social-front/internal/json"
	"github.com/postboard/social-front/internal/log"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// chainMiddleware chains multiple middleware functions
func chainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

type contextKey string

const (
	userIDKey        contextKey = "userID"
	correlationIDKey contextKey = "correlationID"
)

// UserID returns the authenticated user id stored by the auth middleware
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// CorrelationID returns the request correlation id
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) MiddlewareFunc {
	// Build a map for faster lookup
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Only set CORS headers if origin is allowed
			if origin != "" && allowedMap[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowedOrigins) == 0 {
				// If no allowed origins configured, allow all (development mode)
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// correlationMiddleware propagates the caller's X-Correlation-ID, minting one
// when absent, and echoes it on the response
func correlationMiddleware() MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Correlation-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Correlation-ID", id)
			ctx := context.WithValue(r.Context(), correlationIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status and bytes written
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (rw *responseWriter) Status() int {
	return rw.status
}

func (rw *responseWriter) BytesWritten() int {
	return rw.bytes
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// loggerMiddleware adds request/response logging
func loggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			// Log request with response details
			log.LogInfoWithFields(prefix, "request", map[string]interface{}{
				"method":         r.Method,
				"path":           r.URL.Path,
				"status":         wrapped.Status(),
				"duration_ms":    time.Since(start).Milliseconds(),
				"bytes":          wrapped.BytesWritten(),
				"remote_addr":    r.RemoteAddr,
				"correlation_id": CorrelationID(r.Context()),
			})
		})
	}
}

// recoverMiddleware recovers from panics
func recoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					json.WriteInternalServerError(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// newJWTAuthMiddleware verifies the inbound bearer token (HS256, minted by
// the identity tier) and requires X-User-ID to match the token subject. The
// verified user id lands in the request context.
func newJWTAuthMiddleware(secret []byte) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			// RFC 6750: Bearer token must start with "Bearer " followed by exactly one space
			if !strings.HasPrefix(authHeader, "Bearer ") {
				json.WriteUnauthorized(w, "missing or malformed Authorization header")
				return
			}

			tokenString := authHeader[7:]
			if tokenString == "" || strings.TrimSpace(tokenString) != tokenString {
				json.WriteUnauthorized(w, "missing or malformed Authorization header")
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				json.WriteUnauthorized(w, "invalid bearer token")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				json.WriteUnauthorized(w, "bearer token has no subject")
				return
			}

			headerUserID := r.Header.Get("X-User-ID")
			if headerUserID == "" {
				json.WriteUnauthorized(w, "missing X-User-ID header")
				return
			}
			if headerUserID != subject {
				json.WriteForbidden(w, "X-User-ID does not match token subject")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
