package middleware // middleware checks bearer access tokens

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ClaimsKey = "claims"
	UserIDKey = "user_id"
	RoleKey   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token with
// codec and secret. On success the verified *utils.Claims are stored under
// ClaimsKey, and the subject and role under UserIDKey and RoleKey, so
// handlers and downstream middleware can read them via c.Get().
func JWTAuth(codec *utils.TokenCodec, secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the JWT.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, apperr.Unauthorized("you are not authorized to perform this action"))
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Verify pins HS256, checks the signature and rejects expired tokens.
			claims, err := codec.Verify(raw, secret)
			if err != nil {
				return deny(c, apperr.Unauthorized("invalid or expired token"))
			}

			c.Set(ClaimsKey, claims)
			c.Set(UserIDKey, claims.SubjectID)
			c.Set(RoleKey, claims.Role)
			return next(c)
		}
	}
}

// deny writes the standard failure envelope for err.
func deny(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), echo.Map{
		"success": false,
		"error": echo.Map{
			"code":    apperr.KindOf(err),
			"message": apperr.MessageOf(err),
		},
	})
}
