package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loginportal/backend/internal/auth"
	"github.com/loginportal/backend/internal/http/respond"
	"github.com/loginportal/backend/internal/middleware"
	"github.com/loginportal/backend/internal/models"
	"github.com/loginportal/backend/internal/storage/memory"
)

type testApp struct {
	store    *memory.Store
	sessions *auth.SessionManager
	handler  http.Handler
}

// newTestApp wires handlers the way internal/server does, backed by the
// in-memory store.
func newTestApp(t *testing.T, requireLogin bool) *testApp {
	t.Helper()
	store := memory.NewUserStore()
	sessions := auth.NewSessionManager("test-secret", "login-portal", time.Hour)

	mux := http.NewServeMux()
	NewAuthHandler(store, sessions).Register(mux)
	NewPagesHandler(requireLogin).Register(mux)

	return &testApp{
		store:    store,
		sessions: sessions,
		handler:  middleware.WithUser(store, sessions, mux),
	}
}

func (a *testApp) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) respond.Envelope {
	t.Helper()
	var env respond.Envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env
}

func validRegistration() map[string]string {
	return map[string]string{
		"username":              "alice1",
		"first_name":            "Alice",
		"last_name":             "Smith",
		"email":                 "alice@example.com",
		"password":              "Secret123",
		"password_confirmation": "Secret123",
	}
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegisterThenLogin(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "Registration successful! Please log in.", env.Message)
	assert.Equal(t, 1, app.store.Count())

	rr = app.postJSON(t, "/login", map[string]string{"username": "alice1", "password": "Secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/main_page", rr.Header().Get("Location"))
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	userID, err := app.sessions.Verify(cookie.Value)
	require.NoError(t, err)
	stored, err := app.store.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "alice1", stored.Username)
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)

	stored, err := app.store.FindByUsername(context.Background(), "alice1")
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "Secret123"))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)

	again := validRegistration()
	again["email"] = "different@example.com"
	rr = app.postJSON(t, "/register", again)
	assert.Equal(t, http.StatusConflict, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "Username or email already exists. Please choose different ones.", env.Message)
	assert.Equal(t, 1, app.store.Count())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)

	again := validRegistration()
	again["username"] = "bob123"
	rr = app.postJSON(t, "/register", again)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, app.store.Count())
}

func TestRegisterPasswordMismatch(t *testing.T) {
	app := newTestApp(t, true)

	payload := validRegistration()
	payload["password_confirmation"] = "Other456"
	rr := app.postJSON(t, "/register", payload)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "passwords must match", env.Fields["password_confirmation"])
	// Validation failures must never reach the store.
	assert.Equal(t, 0, app.store.Count())
}

func TestRegisterInvalidFields(t *testing.T) {
	app := newTestApp(t, true)

	payload := validRegistration()
	payload["username"] = "ab"
	payload["email"] = "not-an-email"
	rr := app.postJSON(t, "/register", payload)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Contains(t, env.Fields, "username")
	assert.Contains(t, env.Fields, "email")
	assert.Equal(t, 0, app.store.Count())
}

func TestRegisterFormEncoded(t *testing.T) {
	app := newTestApp(t, true)

	form := url.Values{}
	for k, v := range validRegistration() {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, 1, app.store.Count())
}

func TestLoginFailureIsGeneric(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)

	wrongPassword := app.postJSON(t, "/login", map[string]string{"username": "alice1", "password": "wrong"})
	unknownUser := app.postJSON(t, "/login", map[string]string{"username": "nobody99", "password": "Secret123"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// Identical bodies so the response cannot be used to enumerate users.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Nil(t, sessionCookie(wrongPassword))
	assert.Nil(t, sessionCookie(unknownUser))
}

func TestRootAliasesLogin(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = app.postJSON(t, "/", map[string]string{"username": "alice1", "password": "Secret123"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotNil(t, sessionCookie(rr))
}

func TestUnknownPathNotFound(t *testing.T) {
	app := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/no_such_page", nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMainPageRequiresSession(t *testing.T) {
	app := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/main_page", nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Browser navigations are redirected to the login entry point instead.
	req = httptest.NewRequest(http.MethodGet, "/main_page", nil)
	req.Header.Set("Accept", "text/html")
	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestMainPageWithSession(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/register", validRegistration())
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = app.postJSON(t, "/login", map[string]string{"username": "alice1", "password": "Secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/main_page", nil)
	req.AddCookie(cookie)
	out := httptest.NewRecorder()
	app.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	env := decodeEnvelope(t, out)
	assert.Contains(t, env.Message, "Alice")
}

func TestMainPageGuardDisabled(t *testing.T) {
	app := newTestApp(t, false)

	req := httptest.NewRequest(http.MethodGet, "/main_page", nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMainPageRejectsStaleSession(t *testing.T) {
	app := newTestApp(t, true)

	// Token signed for a user that does not exist in the store.
	token, err := app.sessions.Issue(models.User{ID: 999, Username: "ghost"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/main_page", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	app := newTestApp(t, true)

	rr := app.postJSON(t, "/logout", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
	assert.Empty(t, cookie.Value)
}

func TestRegisterMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
