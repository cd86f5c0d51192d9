package handler // handler contains endpoints for the signed-in user and admins

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/middleware"
	"github.com/iliyamo/authcore/internal/service"
)

// UserHandler serves the endpoints of an authenticated user. Every route is
// behind middleware.JWTAuth.
type UserHandler struct {
	Sessions *service.SessionManager
}

func NewUserHandler(s *service.SessionManager) *UserHandler {
	return &UserHandler{Sessions: s}
}

type changePasswordReq struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type updateEmailReq struct {
	NewEmail string `json:"newEmail" validate:"required,email"`
}

func subject(c echo.Context) (string, error) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return "", apperr.Unauthorized("you are not authorized to perform this action")
	}
	return claims.SubjectID, nil
}

// Me returns the current user read from the directory, not from the token.
func (h *UserHandler) Me(c echo.Context) error {
	id, err := subject(c)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Sessions.Profile(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "", echo.Map{"user": u})
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := subject(c)
	if err != nil {
		return fail(c, err)
	}
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Sessions.ChangePassword(ctx, id, req.OldPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "Password updated successfully", nil)
}

func (h *UserHandler) UpdateEmail(c echo.Context) error {
	id, err := subject(c)
	if err != nil {
		return fail(c, err)
	}
	var req updateEmailReq
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Sessions.UpdateEmail(ctx, id, req.NewEmail)
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "Email updated successfully", echo.Map{"user": u})
}

// AdminGetUser looks up any user by id. Admin only.
func (h *UserHandler) AdminGetUser(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Sessions.Profile(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "", echo.Map{"user": u})
}

func isNotFound(err error) bool { return apperr.Is(err, apperr.KindNotFound) }
