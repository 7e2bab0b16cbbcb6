// internal/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const OperatorKey contextKey = "operator"

// Middleware rejects requests without a valid bearer token and stores the
// operator in the request context.
func (t *Tokens) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := t.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorKey, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOperator extracts the operator from context
func GetOperator(r *http.Request) string {
	if val, ok := r.Context().Value(OperatorKey).(string); ok {
		return val
	}
	return ""
}
