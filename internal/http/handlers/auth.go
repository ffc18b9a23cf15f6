package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/loginportal/backend/internal/auth"
	"github.com/loginportal/backend/internal/http/respond"
	"github.com/loginportal/backend/internal/models"
	"github.com/loginportal/backend/internal/storage"
	"github.com/loginportal/backend/internal/validate"
)

// Flash-style messages surfaced to the user. One generic login failure
// message regardless of whether the username or the password was wrong.
const (
	msgRegistered   = "Registration successful! Please log in."
	msgLoggedIn     = "Login successful!"
	msgLoginFailed  = "Login unsuccessful. Please check your username and password."
	msgDuplicate    = "Username or email already exists. Please choose different ones."
	msgLoggedOut    = "Logged out."
	msgStoreFailure = "something went wrong, please try again"
)

// AuthHandler owns the register, login, and logout endpoints.
type AuthHandler struct {
	store    storage.UserStore
	sessions *auth.SessionManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(store storage.UserStore, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{store: store, sessions: sessions}
}

// Register attaches auth routes to the mux. The root path doubles as the
// login entry point.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/", h.handleRoot)
}

type registerRequest struct {
	Username             string `json:"username"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeRegister(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if fields := validate.Registration(req.Username, req.FirstName, req.LastName, req.Email, req.Password, req.PasswordConfirmation); len(fields) > 0 {
		respond.ValidationError(w, http.StatusBadRequest, "validation failed", fields)
		return
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if taken, err := h.identityTaken(r, username, email); err != nil {
		log.Printf("register: duplicate check failed: %v", err)
		respond.Error(w, http.StatusInternalServerError, msgStoreFailure)
		return
	} else if taken {
		respond.Error(w, http.StatusConflict, msgDuplicate)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		Username:     username,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: passwordHash,
	}
	created, err := h.store.CreateUser(r.Context(), user)
	if err != nil {
		// Two concurrent registrations can pass the pre-check; the unique
		// constraints are the source of truth.
		if errors.Is(err, storage.ErrAlreadyExists) {
			respond.Error(w, http.StatusConflict, msgDuplicate)
			return
		}
		log.Printf("register: create user failed: %v", err)
		respond.Error(w, http.StatusInternalServerError, msgStoreFailure)
		return
	}

	w.Header().Set("Location", "/login")
	respond.JSON(w, http.StatusCreated, msgRegistered, created)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeLogin(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if fields := validate.Login(req.Username, req.Password); len(fields) > 0 {
		respond.ValidationError(w, http.StatusBadRequest, "validation failed", fields)
		return
	}

	user, err := h.store.FindByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, msgLoginFailed)
			return
		}
		log.Printf("login: fetch user failed: %v", err)
		respond.Error(w, http.StatusInternalServerError, msgStoreFailure)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respond.Error(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		log.Printf("login: issue session failed: %v", err)
		respond.Error(w, http.StatusInternalServerError, msgStoreFailure)
		return
	}
	auth.SetSessionCookie(w, token, h.sessions.TTL())
	w.Header().Set("Location", "/main_page")
	respond.JSON(w, http.StatusOK, msgLoggedIn, user)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auth.ClearSessionCookie(w)
	w.Header().Set("Location", "/login")
	respond.JSON(w, http.StatusOK, msgLoggedOut, nil)
}

// handleRoot serves "/" as an alias of the login entry point, matching the
// portal's historical routing. Unknown paths fall through here on a
// ServeMux and must 404.
func (h *AuthHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}
	h.handleLogin(w, r)
}

// identityTaken reports whether the username or email is already in use.
func (h *AuthHandler) identityTaken(r *http.Request, username, email string) (bool, error) {
	if _, err := h.store.FindByUsername(r.Context(), username); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	if _, err := h.store.FindByEmail(r.Context(), email); err == nil {
		return true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	return false, nil
}

func decodeRegister(r *http.Request) (registerRequest, error) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return registerRequest{}, err
		}
		return registerRequest{
			Username:             r.PostFormValue("username"),
			FirstName:            r.PostFormValue("first_name"),
			LastName:             r.PostFormValue("last_name"),
			Email:                r.PostFormValue("email"),
			Password:             r.PostFormValue("password"),
			PasswordConfirmation: r.PostFormValue("password_confirmation"),
		}, nil
	}
	var req registerRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

func decodeLogin(r *http.Request) (loginRequest, error) {
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			return loginRequest{}, err
		}
		return loginRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
		}, nil
	}
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	return req, err
}

// isForm distinguishes browser form posts from JSON clients.
func isForm(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}
