package handlers

import (
	"net/http"

	"github.com/loginportal/backend/internal/http/respond"
	"github.com/loginportal/backend/internal/middleware"
)

// PagesHandler serves the landing page behind the session guard.
type PagesHandler struct {
	requireLogin bool
}

// NewPagesHandler constructs the handler. requireLogin controls whether
// the landing page demands an authenticated session.
func NewPagesHandler(requireLogin bool) *PagesHandler {
	return &PagesHandler{requireLogin: requireLogin}
}

// Register attaches the landing route to the mux.
func (h *PagesHandler) Register(mux *http.ServeMux) {
	mux.Handle("/main_page", middleware.RequireUser(h.requireLogin, http.HandlerFunc(h.handleMainPage)))
}

func (h *PagesHandler) handleMainPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		respond.JSON(w, http.StatusOK, "welcome back, "+user.FirstName, user)
		return
	}
	// Reachable only when the guard is disabled.
	respond.JSON(w, http.StatusOK, "welcome", nil)
}
