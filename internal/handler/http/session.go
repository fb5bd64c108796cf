package http

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Frida144/site-segnorito/pkg/logger"
)

// SessionConfig controls the visitor cookie that scopes a cart.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Session makes sure every request carries a visitor session id. A missing or
// malformed cookie is replaced with a fresh UUID. The id is stored in the
// request context through logger.WithSessionID.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				if parsed, err := uuid.Parse(c.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.New().String()
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := logger.WithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionID returns the session id stored by Session.
func sessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}
