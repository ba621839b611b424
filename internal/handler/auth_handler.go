package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"go-storefront/internal/auth"
	"go-storefront/internal/data"
	"go-storefront/internal/logger"
	"go-storefront/internal/middleware"
	"go-storefront/internal/session"
	"go-storefront/internal/view"
)

// PasswordAuthenticator checks email and password sign-ins.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (auth.Identity, error)
}

// OIDCAuthenticator runs the single sign-on code flow.
type OIDCAuthenticator interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	IdentityFromToken(ctx context.Context, code string) (auth.Identity, error)
}

// AuthHandler holds the dependencies for the authentication handlers.
type AuthHandler struct {
	oidc        OIDCAuthenticator
	credentials PasswordAuthenticator
	users       auth.UserStore
	sessions    session.Manager
	view        *view.View
	log         logger.Logger
}

// NewAuthHandler creates a new AuthHandler. oidc may be nil when single
// sign-on is not configured.
func NewAuthHandler(oidc OIDCAuthenticator, creds PasswordAuthenticator, users auth.UserStore, sm session.Manager, v *view.View, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		oidc:        oidc,
		credentials: creds,
		users:       users,
		sessions:    sm,
		view:        v,
		log:         log,
	}
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, errMsg string) *middleware.AppError {
	data := map[string]interface{}{
		"Email":       email,
		"Error":       errMsg,
		"OIDCEnabled": h.oidc != nil,
	}
	if err := renderStatus(w, r, h.view, status, "login.html", data); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render login page", Code: http.StatusInternalServerError}
	}
	return nil
}

// loginFormHandler shows the sign-in form.
func (h *AuthHandler) loginFormHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if id := auth.IdentityFrom(r.Context()); id.CanEdit() {
		http.Redirect(w, r, "/admin/pages", http.StatusSeeOther)
		return nil
	}
	return h.renderLogin(w, r, http.StatusOK, "", "")
}

// loginHandler signs a user in with email and password.
func (h *AuthHandler) loginHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	email := r.FormValue("email")
	id, err := h.credentials.Authenticate(r.Context(), email, r.FormValue("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return h.renderLogin(w, r, http.StatusUnauthorized, email, "Invalid email or password.")
		}
		return &middleware.AppError{Error: err, Message: "Sign-in is currently unavailable", Code: http.StatusServiceUnavailable}
	}
	if err := h.signIn(r.Context(), id); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to start session", Code: http.StatusInternalServerError}
	}
	http.Redirect(w, r, landingPath(id), http.StatusSeeOther)
	return nil
}

func (h *AuthHandler) signIn(ctx context.Context, id auth.Identity) error {
	// Renew the token whenever the privilege level changes.
	if err := h.sessions.RenewToken(ctx); err != nil {
		return err
	}
	h.sessions.Put(ctx, session.KeyUserID, id.ID)
	h.sessions.Put(ctx, session.KeyUserEmail, id.Email)
	h.sessions.Put(ctx, session.KeyUserName, id.Name)
	h.sessions.Put(ctx, session.KeyUserRole, string(id.Role))
	h.log.With(map[string]interface{}{"email": id.Email, "role": string(id.Role)}).Info("user signed in")
	return nil
}

func landingPath(id auth.Identity) string {
	if id.CanEdit() {
		return "/admin/pages"
	}
	return "/"
}

// handleLogout signs the user out and returns to the storefront.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r.Context()); err != nil {
		h.log.Error(err, "failed to destroy session")
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogin redirects the user to the OIDC provider to log in.
// It uses a random 'state' string for CSRF protection.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.NotFound(w, r)
		return
	}
	state, err := randString(16)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	// Store the state in a short-lived cookie to verify on callback.
	http.SetCookie(w, &http.Cookie{
		Name:     "state",
		Value:    state,
		Path:     "/auth/oidc",
		MaxAge:   int(10 * time.Minute / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

// handleCallback is the redirect URL for the OIDC provider.
// It handles the code exchange and token verification.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oidc == nil {
		http.NotFound(w, r)
		return
	}
	stateCookie, err := r.Cookie("state")
	if err != nil {
		http.Error(w, "state cookie not found", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "state did not match", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "state", Path: "/auth/oidc", MaxAge: -1})

	id, err := h.oidc.IdentityFromToken(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.log.Error(err, "oidc sign-in failed")
		http.Error(w, "Sign-in failed", http.StatusUnauthorized)
		return
	}

	// A local account with the same email decides the role.
	if h.users != nil {
		user, err := h.users.GetUserByEmail(r.Context(), id.Email)
		switch {
		case err == nil:
			id.ID = user.ID
			id.Role = auth.ParseRole(user.Role)
			if id.Name == "" {
				id.Name = user.Name
			}
		case !errors.Is(err, data.ErrNotFound):
			h.log.Error(err, "failed to look up oidc user")
			http.Error(w, "Sign-in is currently unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	if err := h.signIn(r.Context(), id); err != nil {
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, landingPath(id), http.StatusFound)
}

// randString is a helper function to generate a random string for the 'state' parameter.
func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
