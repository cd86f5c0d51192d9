package middleware // middleware exposes the authenticated caller to handlers

// identity.go holds the accessors for the identity JWTAuth stores in the Echo
// context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/utils"
)

// CurrentClaims returns the verified access-token claims of the request.
func CurrentClaims(c echo.Context) (*utils.Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*utils.Claims)
	return claims, ok && claims != nil
}

// userID extracts the subject from the context. It returns "guest" when no
// user is authenticated.
func userID(c echo.Context) string {
	if v, ok := c.Get(UserIDKey).(string); ok && v != "" {
		return v
	}
	return "guest"
}
