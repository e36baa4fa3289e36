package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
)

// RequireRole admits only callers holding one of roles. It must run after
// Authenticate; a request without an identity is treated as unauthenticated.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	required := strings.Join(names, " or ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFromContext(c.Request().Context())
			if !ok {
				return apperr.ErrUnauthenticated
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			return apperr.Wrap(apperr.ErrForbidden, "required role: %s", required)
		}
	}
}
