package service // service runs the forgot-password flow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/model"
	"github.com/iliyamo/authcore/internal/repository"
	"github.com/iliyamo/authcore/internal/utils"
)

// PasswordRecovery runs the forgot-password flow. Only the SHA-256 digest of
// a reset token is stored, and a token works once.
type PasswordRecovery struct {
	users    UserDirectory
	hasher   *utils.Hasher
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewPasswordRecovery(users UserDirectory, hasher *utils.Hasher, notifier Notifier,
	ttl time.Duration, log zerolog.Logger) *PasswordRecovery {
	return &PasswordRecovery{users: users, hasher: hasher, notifier: notifier, ttl: ttl, now: time.Now, log: log}
}

// Initiate stores a fresh reset token for the account owning email and sends
// the plaintext to that address. A failed send is logged and leaves the stored
// token in place.
func (r *PasswordRecovery) Initiate(ctx context.Context, email string) error {
	u, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return storeError(err, "user does not exist")
	}
	tok, err := utils.NewResetToken(r.now(), r.ttl)
	if err != nil {
		return apperr.Internal(err)
	}
	if _, err := r.users.Update(ctx, u.ID, model.UserUpdate{
		ResetTokenHash:      &tok.Hash,
		ResetTokenExpiresAt: &tok.ExpiresAt,
	}); err != nil {
		return storeError(err, "user does not exist")
	}
	if r.notifier != nil {
		err := r.notifier.Send(ctx, u.Email, VariantPasswordReset, map[string]string{
			"username": u.Username,
			"token":    tok.Plain,
		})
		if err != nil {
			r.log.Error().Err(err).Str("user_id", u.ID).Msg("send password reset notification")
		}
	}
	r.log.Info().Str("user_id", u.ID).Time("expires_at", tok.ExpiresAt).Msg("password reset initiated")
	return nil
}

// Complete sets a new password for the holder of token and consumes it.
// Unknown and expired tokens fail the same way.
func (r *PasswordRecovery) Complete(ctx context.Context, token, newPassword, confirmPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("token must be provided")
	}
	if newPassword == "" {
		return apperr.Validation("new password is required")
	}
	if newPassword != confirmPassword {
		return apperr.Validation("passwords do not match")
	}

	invalid := apperr.NotFound("reset token is invalid or has expired")
	digest := utils.HashResetToken(token)
	u, err := r.users.FindByResetTokenHash(ctx, digest)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return apperr.Persistence(err)
	}
	now := r.now()
	if u.ResetTokenExpiresAt == nil || !now.Before(*u.ResetTokenExpiresAt) {
		return invalid
	}

	hash, err := r.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	// The token may have been spent by a concurrent request since the lookup.
	consumed, err := r.users.ConsumeResetToken(ctx, u.ID, digest, hash, now)
	if err != nil {
		return apperr.Persistence(err)
	}
	if !consumed {
		return invalid
	}
	r.log.Info().Str("user_id", u.ID).Msg("password reset completed")
	return nil
}
