package middleware // middleware restricts routes to roles

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/apperr"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. It assumes JWTAuth
// has already stored the role claim under RoleKey. Requests without an
// allowed role are aborted with 403 Forbidden.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(RoleKey).(string)
			if !ok || !allowed[role] {
				return deny(c, apperr.Forbidden("you are not authorized to perform this action"))
			}
			return next(c)
		}
	}
}
