// Package utils holds the credential primitives: password hashing, signed
// session tokens and password-reset tokens.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/authcore/internal/apperr"
)

// TokenIdentity is the identity part of a token's claim set.
type TokenIdentity struct {
	SubjectID string
	Username  string
	Email     string
	Role      string
}

// Claims is the signed payload of access and refresh tokens. The JSON names
// are part of the wire contract with clients decoding the token.
type Claims struct {
	SubjectID string `json:"subjectId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Identity strips the registered claims.
func (c *Claims) Identity() TokenIdentity {
	return TokenIdentity{SubjectID: c.SubjectID, Username: c.Username, Email: c.Email, Role: c.Role}
}

// Remaining returns how long the token stays valid after now.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// IssuedToken is a signed token string along with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens. The secret is passed per call so
// access and refresh tokens can use independent keys.
type TokenCodec struct {
	now func() time.Time
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

func NewTokenCodec(opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now returns the codec's current time.
func (c *TokenCodec) Now() time.Time { return c.now().UTC() }

// Issue builds and signs a token for id that expires ttl from now. Every token
// carries a random jti, so two tokens for the same identity never collide.
func (c *TokenCodec) Issue(id TokenIdentity, secret string, ttl time.Duration) (IssuedToken, error) {
	if secret == "" {
		return IssuedToken{}, apperr.Configuration("token signing secret is not configured")
	}
	now := c.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		SubjectID: id.SubjectID,
		Username:  id.Username,
		Email:     id.Email,
		Role:      id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return IssuedToken{}, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}
	return IssuedToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify parses token, checks its HMAC signature against secret and rejects it
// once expired. Every failure, including faults inside the JWT library, is
// reported as TokenInvalid.
func (c *TokenCodec) Verify(token, secret string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, apperr.TokenInvalid(fmt.Errorf("token parser panic: %v", r))
		}
	}()
	if token == "" {
		return nil, apperr.TokenInvalid(errors.New("empty token"))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithTimeFunc(c.Now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, apperr.TokenInvalid(err)
	}
	out, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || out.SubjectID == "" {
		return nil, apperr.TokenInvalid(errors.New("invalid claims"))
	}
	return out, nil
}
