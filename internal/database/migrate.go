package database // database creates the users schema

import (
	"context"
	"database/sql"
	"fmt"
)

// usersSchema is the user directory table. The unique keys are named because
// the repository maps duplicate-entry errors back to them.
const usersSchema = `CREATE TABLE IF NOT EXISTS users (
  id                        CHAR(36)      NOT NULL,
  username                  VARCHAR(64)   NOT NULL,
  email                     VARCHAR(255)  NULL,
  password_hash             VARCHAR(255)  NULL,
  role                      ENUM('user','admin') NOT NULL DEFAULT 'user',
  refresh_token             VARCHAR(1024) NULL,
  password_reset_token_hash CHAR(64)      NULL,
  password_reset_expires_at DATETIME      NULL,
  provider                  VARCHAR(32)   NULL,
  provider_id               VARCHAR(191)  NULL,
  created_at                DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at                DATETIME      NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  UNIQUE KEY uq_users_username (username),
  UNIQUE KEY uq_users_email (email),
  UNIQUE KEY uq_users_provider (provider, provider_id),
  KEY ix_users_refresh_token (refresh_token(191)),
  KEY ix_users_reset_token (password_reset_token_hash)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}
