package model // model defines the user record and its public view

import "time"

// Role is the flat authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// User represents an account record as stored in the `users` table. Empty
// strings stand for NULL columns: Email and PasswordHash are empty for some
// provider-only accounts, RefreshToken is empty while logged out, and the
// reset fields are empty unless a password reset is pending.
//
// Fields:
//
//	ID                  – opaque UUID primary key.
//	Username            – unique login name.
//	Email               – unique email address (nullable).
//	PasswordHash        – bcrypt digest (nullable).
//	Role                – user or admin.
//	RefreshToken        – the single live refresh token (nullable).
//	ResetTokenHash      – SHA-256 digest of the pending reset token (nullable).
//	ResetTokenExpiresAt – when the pending reset token stops being accepted.
//	Provider/ProviderID – federated identity, unique together (nullable).
type User struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	Role                Role
	RefreshToken        string
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
	Provider            string
	ProviderID          string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Federated reports whether the record is linked to an external provider.
func (u *User) Federated() bool { return u.Provider != "" && u.ProviderID != "" }

// Public returns the sanitized view of u.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// PublicUser is the part of a user record that may leave the service.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// UserUpdate lists the fields to change on a user. Nil pointers are left
// untouched. An empty RefreshToken clears the stored value. ClearResetToken
// wins over ResetTokenHash/ResetTokenExpiresAt.
type UserUpdate struct {
	Email               *string
	PasswordHash        *string
	RefreshToken        *string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	ClearResetToken     bool
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Email == nil && u.PasswordHash == nil && u.RefreshToken == nil &&
		u.ResetTokenHash == nil && u.ResetTokenExpiresAt == nil && !u.ClearResetToken
}

// Apply writes the update onto u in place.
func (u UserUpdate) Apply(user *User) {
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.PasswordHash != nil {
		user.PasswordHash = *u.PasswordHash
	}
	if u.RefreshToken != nil {
		user.RefreshToken = *u.RefreshToken
	}
	if u.ClearResetToken {
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = nil
		return
	}
	if u.ResetTokenHash != nil {
		user.ResetTokenHash = *u.ResetTokenHash
	}
	if u.ResetTokenExpiresAt != nil {
		t := *u.ResetTokenExpiresAt
		user.ResetTokenExpiresAt = &t
	}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
