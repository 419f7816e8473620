package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/seotools/pkg/observability"
)

// SessionCookieName is the cookie carrying the anonymous analytics session
const SessionCookieName = "seo_session"

// DefaultSessionMaxAge is how long a minted session cookie lives
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// SessionMiddleware resolves the anonymous session for every request. A missing or
// malformed seo_session cookie is replaced with a fresh UUID.
func SessionMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   r.TLS != nil,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(maxAge.Seconds()),
				})
			}

			next.ServeHTTP(w, r.WithContext(observability.WithSessionID(r.Context(), sessionID)))
		})
	}
}
