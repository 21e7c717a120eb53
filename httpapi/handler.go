// Package httpapi exposes the authcore engine over HTTP with Echo. Tokens
// travel in HttpOnly cookies; request and response bodies are JSON with a
// uniform {"error": "..."} envelope on failure.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keshvara/authcore"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"

	// refreshCookiePath scopes the refresh token to the one route that
	// needs it, so it is not replayed on every request.
	refreshCookiePath = "/auth/refresh"
)

// Handler bundles the engine behind the HTTP routes.
type Handler struct {
	engine *authcore.Engine

	accessTTL  time.Duration
	refreshTTL time.Duration

	// Secure marks cookies as HTTPS-only. Leave false for local development.
	Secure bool
}

// NewHandler wraps engine. The TTLs size the cookie Max-Age attributes and
// should match the engine's JWT configuration.
func NewHandler(engine *authcore.Engine, accessTTL, refreshTTL time.Duration) *Handler {
	return &Handler{
		engine:     engine,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// RegisterRoutes mounts all authentication routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/logout", h.Logout)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/verify-email", h.VerifyEmail)
	e.POST("/auth/request-password-reset", h.RequestPasswordReset)
	e.POST("/auth/reset-password", h.ResetPassword)

	e.GET("/me", h.Me, RequireAuth(h.engine))
	e.GET("/admin/protected", h.AdminProtected, RequireAuth(h.engine), RequireRole(authcore.RoleAdmin))
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailReq struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type resetRequestReq struct {
	Email string `json:"email"`
}

type resetPasswordReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Register creates an unverified account.
func (h *Handler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	user, err := h.engine.Register(reqCtx(c), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrEmailInUse):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered"})
		case errors.Is(err, authcore.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too weak"})
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{"user": user})
}

// Login authenticates and sets the token cookies.
func (h *Handler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password required"})
	}

	res, err := h.engine.Login(reqCtx(c), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrInvalidCredentials):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		case errors.Is(err, authcore.ErrEmailNotVerified):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "email not verified"})
		default:
			return internalError(c, err)
		}
	}

	h.setTokenCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, echo.Map{"user": res.User})
}

// Refresh rotates the refresh token cookie and reissues both cookies.
func (h *Handler) Refresh(c echo.Context) error {
	token, err := readCookie(c, refreshCookieName)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token required"})
	}

	res, err := h.engine.Refresh(reqCtx(c), token)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrTokenReuse):
			h.clearTokenCookies(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Refresh token reuse detected. All sessions revoked."})
		case errors.Is(err, authcore.ErrInvalidToken), errors.Is(err, authcore.ErrUserNotFound):
			h.clearTokenCookies(c)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		default:
			return internalError(c, err)
		}
	}

	h.setTokenCookies(c, res.Tokens)
	return c.JSON(http.StatusOK, echo.Map{"user": res.User})
}

// Logout revokes the current session and clears both cookies.
func (h *Handler) Logout(c echo.Context) error {
	token, err := readCookie(c, refreshCookieName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh token required"})
	}

	if err := h.engine.Logout(reqCtx(c), token); err != nil {
		if errors.Is(err, authcore.ErrInvalidToken) {
			h.clearTokenCookies(c)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid refresh token"})
		}
		return internalError(c, err)
	}

	h.clearTokenCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// VerifyEmail confirms an account with a single-use token.
func (h *Handler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and token required"})
	}

	err := h.engine.VerifyEmail(reqCtx(c), req.Email, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrAlreadyVerified):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already verified"})
		case errors.Is(err, authcore.ErrEmailMismatch),
			errors.Is(err, authcore.ErrInvalidToken),
			errors.Is(err, authcore.ErrUserNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid verification token"})
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// RequestPasswordReset issues a reset token; the response does not reveal
// whether the email exists.
func (h *Handler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}

	if err := h.engine.RequestPasswordReset(reqCtx(c), req.Email); err != nil {
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "if the email exists, a reset link has been sent"})
}

// ResetPassword consumes a reset token and sets a new password.
func (h *Handler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	err := h.engine.ResetPassword(reqCtx(c), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, authcore.ErrWeakPassword):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "password too weak"})
		case errors.Is(err, authcore.ErrInvalidToken), errors.Is(err, authcore.ErrUserNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reset token"})
		default:
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// Me returns the authenticated caller's identity.
func (h *Handler) Me(c echo.Context) error {
	id, ok := authcore.IdentityFromContext(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"userId": id.UserID,
		"role":   id.Role,
	})
}

// AdminProtected is a probe route for role enforcement.
func (h *Handler) AdminProtected(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "admin access granted"})
}

// ----- helpers -----

func reqCtx(c echo.Context) context.Context {
	return authcore.WithClientIP(c.Request().Context(), c.RealIP())
}

func (h *Handler) setTokenCookies(c echo.Context, tokens authcore.TokenPair) {
	c.SetCookie(&http.Cookie{
		Name:     accessCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   int(h.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearTokenCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readCookie(c echo.Context, name string) (string, error) {
	cookie, err := c.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", errors.New("cookie missing")
	}
	return cookie.Value, nil
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1
}

func internalError(c echo.Context, err error) error {
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
