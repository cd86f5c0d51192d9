package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/authcore/internal/model"
)

var userCols = []string{"id", "username", "email", "password_hash", "role", "refresh_token",
	"password_reset_token_hash", "password_reset_expires_at", "provider", "provider_id", "created_at", "updated_at"}

func newMock(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepo(db), mock
}

func userRow(id string) *sqlmock.Rows {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(userCols).AddRow(id, "alice", "alice@x.com", "$2a$hash", "user", nil,
		nil, nil, nil, nil, now, now)
}

func TestUserRepo_FindByUsername(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username=? LIMIT 1")).
		WithArgs("alice").
		WillReturnRows(userRow("u-1"))

	u, err := r.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.Empty(t, u.RefreshToken)
	assert.Nil(t, u.ResetTokenExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_FindNotFound(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE provider=? AND provider_id=?")).
		WithArgs("github", "42").
		WillReturnError(sql.ErrNoRows)

	_, err := r.FindByProvider(context.Background(), "github", "42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_InsertDuplicateEmail(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@x.com' for key 'users.uq_users_email'"})

	err := r.Insert(context.Background(), &model.User{ID: "u-1", Username: "alice", Email: "a@x.com", Role: model.RoleUser})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_InsertReadsBack(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u-1", "alice", sql.NullString{String: "alice@x.com", Valid: true},
			sql.NullString{String: "$2a$hash", Valid: true}, "user",
			sql.NullString{}, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs("u-1").
		WillReturnRows(userRow("u-1"))

	u := &model.User{ID: "u-1", Username: "alice", Email: "Alice@x.com", PasswordHash: "$2a$hash", Role: model.RoleUser}
	require.NoError(t, r.Insert(context.Background(), u))
	assert.False(t, u.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateClearsResetToken(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE users SET password_hash=?,password_reset_token_hash=NULL,password_reset_expires_at=NULL WHERE id=?")).
		WithArgs(sql.NullString{String: "new-hash", Valid: true}, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs("u-1").
		WillReturnRows(userRow("u-1"))

	_, err := r.Update(context.Background(), "u-1", model.UserUpdate{
		PasswordHash:    model.Ptr("new-hash"),
		ClearResetToken: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_UpdateRefreshTokenToNull(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token=? WHERE id=?")).
		WithArgs(sql.NullString{}, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs("u-1").
		WillReturnRows(userRow("u-1"))

	_, err := r.Update(context.Background(), "u-1", model.UserUpdate{RefreshToken: model.Ptr("")})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_ClearRefreshToken(t *testing.T) {
	r, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET refresh_token=NULL WHERE refresh_token=?")).
		WithArgs("stale").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := r.ClearRefreshToken(context.Background(), "stale")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_ConsumeResetToken(t *testing.T) {
	r, mock := newMock(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q := regexp.QuoteMeta("UPDATE users SET password_hash=?,password_reset_token_hash=NULL,password_reset_expires_at=NULL " +
		"WHERE id=? AND password_reset_token_hash=? AND password_reset_expires_at>?")
	mock.ExpectExec(q).
		WithArgs("new-hash", "u-1", "digest", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs("other-hash", "u-1", "digest", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.ConsumeResetToken(context.Background(), "u-1", "digest", "new-hash", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// The second request finds the token already cleared.
	ok, err = r.ConsumeResetToken(context.Background(), "u-1", "digest", "other-hash", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
