package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/catalogaudit/internal/nameloader"
)

type ctxKey string

const nameLoaderKey ctxKey = "nameLoader"

// DataLoaderMiddleware attaches a fresh name loader to every request context
func DataLoaderMiddleware(source nameloader.NameSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := nameloader.NewNameLoader(source)
			ctx := context.WithValue(r.Context(), nameLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NameLoaderFromContext retrieves the name loader from context
func NameLoaderFromContext(ctx context.Context) *nameloader.NameLoader {
	if l, ok := ctx.Value(nameLoaderKey).(*nameloader.NameLoader); ok {
		return l
	}
	return nil
}
