package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("login: %w", InvalidCredentials())

	assert.Equal(t, KindInvalidCredentials, KindOf(err))
	assert.True(t, Is(err, KindInvalidCredentials))
	assert.False(t, Is(err, KindNotFound))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Persistence(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PERSISTENCE_ERROR")
	assert.Equal(t, "user store unavailable", MessageOf(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{InvalidCredentials(), http.StatusUnauthorized},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{TokenInvalid(nil), http.StatusUnauthorized},
		{Forbidden("admins only"), http.StatusForbidden},
		{NotFound("user not found"), http.StatusNotFound},
		{Conflict("exists"), http.StatusConflict},
		{New(KindNoVerifiedEmail, "none"), http.StatusUnprocessableEntity},
		{New(KindTokenExchange, "x"), http.StatusBadGateway},
		{New(KindIdentityFetch, "x"), http.StatusBadGateway},
		{Persistence(nil), http.StatusInternalServerError},
		{Configuration("missing"), http.StatusInternalServerError},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(KindOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
