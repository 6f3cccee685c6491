package middleware

import (
	"context"
	"net/http"
)

type debugKey struct{}

// DebugErrors marks every request as allowed to see internal error details.
// The server installs it only in development.
func DebugErrors(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), debugKey{}, true)))
		})
	}
}

// DebugEnabled reports whether error responses may include internal details.
func DebugEnabled(ctx context.Context) bool {
	on, _ := ctx.Value(debugKey{}).(bool)
	return on
}
