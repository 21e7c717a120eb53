package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/keshvara/authcore"
)

// RequireAuth validates the access token cookie and injects the caller's
// identity into the request context for downstream handlers.
func RequireAuth(engine *authcore.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := readCookie(c, accessCookieName)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			id, err := engine.ValidateAccess(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			ctx := authcore.WithIdentity(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole aborts with 403 unless the authenticated identity holds one
// of the given roles. Must run after RequireAuth.
func RequireRole(roles ...authcore.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := authcore.IdentityFromContext(c.Request().Context())
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			if !id.Role.Allows(roles...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
