package repository // repository holds the MySQL user directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/authcore/internal/model"
)

const userColumns = "id,username,email,password_hash,role,refresh_token," +
	"password_reset_token_hash,password_reset_expires_at,provider,provider_id,created_at,updated_at"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// UserRepo is the MySQL-backed user directory.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Insert stores a new user. ID, Username and Role must be set; timestamps are
// filled in from the database defaults.
func (r *UserRepo) Insert(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id,username,email,password_hash,role,provider,provider_id) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Username, nullString(NormalizeEmail(u.Email)), nullString(u.PasswordHash), string(u.Role),
		nullString(u.Provider), nullString(u.ProviderID))
	if err != nil {
		return translateDuplicate(err)
	}
	stored, err := r.FindByID(ctx, u.ID)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id=?", id)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username=?", username)
}

// FindByEmail matches the normalized (trimmed, lower-cased) email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "email=?", NormalizeEmail(email))
}

func (r *UserRepo) FindByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	return r.findOne(ctx, "provider=? AND provider_id=?", provider, providerID)
}

// FindByResetTokenHash returns the user holding the given reset digest. Expiry
// is checked by the caller.
func (r *UserRepo) FindByResetTokenHash(ctx context.Context, hash string) (*model.User, error) {
	return r.findOne(ctx, "password_reset_token_hash=?", hash)
}

// Update applies the non-nil fields of upd to the user and returns the stored
// record afterwards.
func (r *UserRepo) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if upd.Empty() {
		return r.FindByID(ctx, id)
	}
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if upd.Email != nil {
		sets = append(sets, "email=?")
		args = append(args, nullString(NormalizeEmail(*upd.Email)))
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "password_hash=?")
		args = append(args, nullString(*upd.PasswordHash))
	}
	if upd.RefreshToken != nil {
		sets = append(sets, "refresh_token=?")
		args = append(args, nullString(*upd.RefreshToken))
	}
	if upd.ClearResetToken {
		sets = append(sets, "password_reset_token_hash=NULL", "password_reset_expires_at=NULL")
	} else {
		if upd.ResetTokenHash != nil {
			sets = append(sets, "password_reset_token_hash=?")
			args = append(args, nullString(*upd.ResetTokenHash))
		}
		if upd.ResetTokenExpiresAt != nil {
			sets = append(sets, "password_reset_expires_at=?")
			args = append(args, upd.ResetTokenExpiresAt.UTC())
		}
	}
	args = append(args, id)

	if _, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
		return nil, translateDuplicate(err)
	}
	// MySQL reports 0 affected rows when values are unchanged, so existence is
	// confirmed by reading the row back.
	return r.FindByID(ctx, id)
}

// ConsumeResetToken sets passwordHash and clears the reset fields, but only
// while the user still holds tokenHash and it has not expired at now. It
// reports whether the token was consumed; of two concurrent callers at most
// one sees true.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?,password_reset_token_hash=NULL,password_reset_expires_at=NULL "+
			"WHERE id=? AND password_reset_token_hash=? AND password_reset_expires_at>?",
		passwordHash, id, tokenHash, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearRefreshToken nulls the refresh token on whichever user currently holds
// exactly token and reports how many rows changed.
func (r *UserRepo) ClearRefreshToken(ctx context.Context, token string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET refresh_token=NULL WHERE refresh_token=?", token)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepo) findOne(ctx context.Context, where string, args ...any) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		role     string
		resetExp sql.NullTime

		email, passwordHash, refreshToken, resetHash, prov, pid sql.NullString
	)
	err := row.Scan(&u.ID, &u.Username, &email, &passwordHash, &role, &refreshToken,
		&resetHash, &resetExp, &prov, &pid, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Email = email.String
	u.PasswordHash = passwordHash.String
	u.RefreshToken = refreshToken.String
	u.ResetTokenHash = resetHash.String
	u.Provider = prov.String
	u.ProviderID = pid.String
	if resetExp.Valid {
		t := resetExp.Time.UTC()
		u.ResetTokenExpiresAt = &t
	}
	return &u, nil
}

// translateDuplicate maps MySQL duplicate-key errors to the sentinel of the
// violated unique index.
func translateDuplicate(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlDuplicateEntry {
		return err
	}
	msg := myErr.Message
	switch {
	case strings.Contains(msg, "uq_users_provider"):
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, msg)
	case strings.Contains(msg, "uq_users_email"):
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, msg)
	default:
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, msg)
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
