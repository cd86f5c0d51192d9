package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/handler"
	"github.com/iliyamo/authcore/internal/middleware"
	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the session, recovery and OAuth endpoints under
// /api/v1. Routes under /api/v1/user and /api/v1/admin require a valid access
// token signed with accessSecret; /api/v1/admin additionally requires the
// admin role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, u *handler.UserHandler,
	codec *utils.TokenCodec, accessSecret string) {
	api := e.Group("/api/v1")

	// Operations that establish, extend or end a session.
	auth := api.Group("/auth")
	auth.POST("/register", a.Register)
	auth.POST("/login", a.Login)
	auth.POST("/logout", a.Logout)
	auth.PUT("/init-forget-password", a.InitForgotPassword)
	auth.PUT("/new-password/:token", a.CompletePasswordReset)
	auth.GET("/oauth/redirect", a.OAuthRedirect)
	auth.GET("/oauth/callback", a.OAuthCallback)

	// The refresh token travels in the cookie, not in an Authorization header.
	api.POST("/verify/refresh-token", a.Refresh)

	jwt := middleware.JWTAuth(codec, accessSecret)

	user := api.Group("/user", jwt)
	user.GET("/me", u.Me)
	user.PUT("/new-password", u.ChangePassword)
	user.PUT("/email-update", u.UpdateEmail)

	admin := api.Group("/admin", jwt, middleware.RequireRole(string(model.RoleAdmin)))
	admin.GET("/users/:id", u.AdminGetUser)
}
