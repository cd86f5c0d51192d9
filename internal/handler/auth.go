package handler // handler contains the unauthenticated auth endpoints

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/service"
)

// AuthHandler bundles dependencies for the unauthenticated auth endpoints.
type AuthHandler struct {
	Sessions   *service.SessionManager
	Recovery   *service.PasswordRecovery
	Federation *service.Federation
}

func NewAuthHandler(s *service.SessionManager, r *service.PasswordRecovery, f *service.Federation) *AuthHandler {
	return &AuthHandler{Sessions: s, Recovery: r, Federation: f}
}

// ----- DTOs -----

type registerReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// loginReq carries no length rule so every wrong password is reported as
// invalid credentials.
type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordReq struct {
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword"`
	OldPassword     string `json:"oldPassword"` // older clients send the confirmation here
}

// sessionUser is the user part of a session response, with the access token
// alongside the public fields.
type sessionUser struct {
	model.PublicUser
	AccessToken string `json:"accessToken"`
}

type sessionData struct {
	User sessionUser `json:"user"`
}

func sessionBody(res *service.SessionResult) sessionData {
	return sessionData{User: sessionUser{PublicUser: res.User, AccessToken: res.AccessToken}}
}

// Register creates a local account. It does not log the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Sessions.Register(ctx, service.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusCreated, "User created successfully", echo.Map{"user": u})
}

// Login verifies credentials, sets the refresh cookie and returns the access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	setCookie(c, res.Cookie)
	return success(c, http.StatusOK, "Login successful", sessionBody(res))
}

// Refresh issues a new access token from the refresh cookie, rotating the
// cookie when it is close to expiry.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Sessions.Refresh(ctx, refreshCookie(c))
	if err != nil {
		return fail(c, err)
	}
	setCookie(c, res.Cookie)
	return success(c, http.StatusOK, "Access token refreshed successfully", sessionBody(res))
}

// Logout forgets the refresh cookie server-side and clears it. Always 200.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	setCookie(c, h.Sessions.Logout(ctx, refreshCookie(c))) // always an expiring cookie
	return success(c, http.StatusOK, "Logged out successfully", nil)
}

const forgotPasswordMessage = "If an account exists for this email, a reset link has been sent"

// InitForgotPassword starts a password reset. The response does not reveal
// whether the email belongs to an account.
func (h *AuthHandler) InitForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	// unknown emails get the same answer as known ones
	if err := h.Recovery.Initiate(ctx, req.Email); err != nil && !isNotFound(err) {
		return fail(c, err)
	}
	return success(c, http.StatusOK, forgotPasswordMessage, nil)
}

// CompletePasswordReset sets a new password using the emailed token.
func (h *AuthHandler) CompletePasswordReset(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	confirm := req.ConfirmPassword
	if confirm == "" {
		confirm = req.OldPassword // legacy field name
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Recovery.Complete(ctx, c.Param("token"), req.NewPassword, confirm); err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "Password updated successfully", nil)
}

// OAuthRedirect returns the consent URL of ?provider= for the client to follow
// and sets the state cookie the callback checks.
func (h *AuthHandler) OAuthRedirect(c echo.Context) error {
	req, err := h.Federation.AuthorizationURL(c.QueryParam("provider"))
	if err != nil {
		return fail(c, err)
	}
	setCookie(c, req.Cookie)
	return success(c, http.StatusOK, "", echo.Map{"redirectUrl": req.URL})
}

// OAuthCallback finishes the provider flow and redirects the browser to the
// client success or error page.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	var expected string // state remembered by OAuthRedirect; empty if the cookie is missing
	if ck, err := c.Cookie(service.OAuthStateCookieName); err == nil {
		expected = ck.Value
	}
	out := h.Federation.Callback(ctx, c.QueryParam("provider"), c.QueryParam("code"), c.QueryParam("state"), expected)
	setCookie(c, out.ClearState) // a state value is good for one callback
	if out.Cookie != nil {
		setCookie(c, *out.Cookie)
	}
	return c.Redirect(http.StatusFound, out.RedirectURL)
}
