package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/loginportal/backend/internal/auth"
	"github.com/loginportal/backend/internal/http/respond"
	"github.com/loginportal/backend/internal/models"
	"github.com/loginportal/backend/internal/storage"
)

type contextKey string

const userContextKey contextKey = "portal.user"

// WithUser resolves the session cookie to a stored user and stashes it in
// the request context. A missing cookie, an invalid or expired token, or a
// token whose subject no longer exists all leave the request
// unauthenticated; they are never an error.
func WithUser(store storage.UserStore, sessions *auth.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := sessions.Verify(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := store.FindByID(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user for the request, if any.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// RequireUser guards a handler behind an authenticated session. Browser
// navigations are sent back to the login entry point; API clients get a
// 401 envelope. The enabled flag mirrors the landing-page guard toggle and
// passes requests through untouched when off.
func RequireUser(enabled bool, next http.Handler) http.Handler {
	if !enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			if wantsHTML(r) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			respond.Error(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}
