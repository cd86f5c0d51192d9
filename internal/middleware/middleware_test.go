package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authcore/internal/utils"
)

const secret = "access-secret"

func newEcho(codec *utils.TokenCodec, roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTAuth(codec, secret))
	if len(roles) > 0 {
		g.Use(RequireRole(roles...))
	}
	g.GET("/me", func(c echo.Context) error {
		claims, ok := CurrentClaims(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, claims.SubjectID+"|"+userID(c))
	})
	return e
}

func issue(t *testing.T, codec *utils.TokenCodec, role, key string, ttl time.Duration) string {
	t.Helper()
	tok, err := codec.Issue(utils.TokenIdentity{SubjectID: "u-1", Username: "alice", Role: role}, key, ttl)
	require.NoError(t, err)
	return tok.Token
}

func do(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestJWTAuth(t *testing.T) {
	codec := utils.NewTokenCodec()
	e := newEcho(codec)

	rec := do(e, "Bearer "+issue(t, codec, "user", secret, time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1|u-1", rec.Body.String())

	for name, auth := range map[string]string{
		"missing":      "",
		"not bearer":   "Basic abc",
		"garbage":      "Bearer nope",
		"other secret": "Bearer " + issue(t, codec, "user", "refresh-secret", time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(e, auth)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestJWTAuth_Expired(t *testing.T) {
	now := time.Now()
	codec := utils.NewTokenCodec(utils.WithClock(func() time.Time { return now }))
	tok := issue(t, codec, "user", secret, time.Minute)
	now = now.Add(2 * time.Minute)

	rec := do(newEcho(codec), "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	codec := utils.NewTokenCodec()
	e := newEcho(codec, "admin")

	rec := do(e, "Bearer "+issue(t, codec, "admin", secret, time.Minute))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, "Bearer "+issue(t, codec, "user", secret, time.Minute))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf)))
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/x?code=secret", nil)
	e.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"path":"/x"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"user_id":"guest"`)
	assert.NotContains(t, out, "secret")
}
