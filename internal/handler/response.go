package handler // handler holds the JSON envelope and cookie helpers shared by handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/service"
)

// requestTimeout bounds the store and provider calls of one request.
const requestTimeout = 5 * time.Second

type errorBody struct {
	Code    apperr.Kind `json:"code"`
	Message string      `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func success(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// fail writes the failure envelope with the status mapped from err's kind.
// Internal causes are logged, never sent.
func fail(c echo.Context, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("request failed")
	}
	return c.JSON(status, envelope{Error: &errorBody{Code: apperr.KindOf(err), Message: apperr.MessageOf(err)}})
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid body")
	}
	return c.Validate(dst)
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func setCookie(c echo.Context, ci service.CookieInstruction) {
	c.SetCookie(ci.Cookie())
}

func refreshCookie(c echo.Context) string {
	ck, err := c.Cookie(service.RefreshCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}
