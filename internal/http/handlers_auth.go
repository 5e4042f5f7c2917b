package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	"github.com/ahava-health/ahava-api/internal/service"
)

// DefaultCookieName carries the session token in browsers.
const DefaultCookieName = "ahava_auth_session"

// AuthServiceInterface defines the auth operations the HTTP layer depends on.
type AuthServiceInterface interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Logout(ctx context.Context, token string, meta service.RequestMeta) error
	SessionTTL() time.Duration
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieName   string
	CookieDomain string
	TrustProxy   bool
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieName() string {
	if h.CookieName != "" {
		return h.CookieName
	}
	return DefaultCookieName
}

type userJSON struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Name  string          `json:"name,omitempty"`
	Role  domainauth.Role `json:"role,omitempty"`
}

type userResponse struct {
	User userJSON `json:"user"`
}

func toUserResponse(res *service.AuthResult) userResponse {
	return userResponse{User: userJSON{
		ID:    res.User.ID,
		Email: res.User.Email,
		Name:  res.User.Name,
		Role:  res.Role,
	}}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a patient account and signs it in.
// POST /api/auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Signup(r.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Meta:     h.meta(r),
	})
	if err != nil {
		writeAppError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, r, res.Session.Token)
	WriteJSON(w, http.StatusCreated, toUserResponse(res))
}

// Login verifies credentials and issues a session.
// POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     h.meta(r),
	})
	if err != nil {
		writeAppError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, r, res.Session.Token)
	WriteJSON(w, http.StatusOK, toUserResponse(res))
}

// Logout revokes the presented session, if any, and clears the cookie.
// POST /api/auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r, h.cookieName()); token != "" {
		if err := h.Svc.Logout(r.Context(), token, h.meta(r)); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.clearCookie(w, r)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandlers) meta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        ClientIP(r, h.TrustProxy),
		UserAgent: r.UserAgent(),
	}
}

// isSecureRequest reports TLS on the connection, or X-Forwarded-Proto https when the
// proxy in front is trusted.
func isSecureRequest(r *http.Request, trustProxy bool) bool {
	if r.TLS != nil {
		return true
	}
	return trustProxy && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// setSessionCookie writes the session cookie with a lifetime equal to the session TTL.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r, h.TrustProxy),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.Svc.SessionTTL().Seconds()),
	})
}

// clearCookie mirrors the attributes used when setting the cookie so browsers delete it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r, h.TrustProxy),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
