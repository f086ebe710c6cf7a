package devportal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arcadelabs/arcade/internal/store"
)

type Middleware = func(http.Handler) http.Handler

type contextKey string

const developerContextKey contextKey = "developer"

// ContextWithDeveloper attaches an authenticated developer to the context.
func ContextWithDeveloper(ctx context.Context, dev store.Developer) context.Context {
	return context.WithValue(ctx, developerContextKey, dev)
}

// DeveloperFromContext returns the authenticated developer, if any.
func DeveloperFromContext(ctx context.Context) (store.Developer, bool) {
	dev, ok := ctx.Value(developerContextKey).(store.Developer)
	return dev, ok
}

func LogRequests(logger *slog.Logger) Middleware {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			handler.ServeHTTP(w, r)

			var attrs []slog.Attr
			dev, ok := DeveloperFromContext(r.Context())
			if ok {
				attrs = append(attrs, slog.String("developer", dev.Username))
			}

			attrs = append(attrs, slog.Group("request",
				slog.String("method", r.Method),
				slog.String("proto", r.Proto),
				slog.String("host", r.Host),
				slog.String("remote", r.RemoteAddr),
				slog.String("path", r.URL.Path),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			))

			logger.LogAttrs(r.Context(), slog.LevelDebug, "request", attrs...)
		})
	}
}

// Authenticate validates basic-auth credentials against the developer
// accounts and adds the developer to the request context. Responds with 401
// when the credentials are missing or wrong.
func Authenticate(accounts store.Store) Middleware {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="arcade developers"`)
				http.Error(w, "credentials required", http.StatusUnauthorized)
				return
			}

			dev, err := accounts.AuthenticateDeveloper(r.Context(), username, password)
			if err != nil {
				if errors.Is(err, store.ErrInvalidCredentials) {
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			r = r.WithContext(ContextWithDeveloper(r.Context(), dev))
			handler.ServeHTTP(w, r)
		})
	}
}

// Wrap handler with middlewares.
func Wrap(handler http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		if mw != nil {
			handler = mw(handler)
		}
	}

	return handler
}
