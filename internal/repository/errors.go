// Package repository holds the user directory implementations. Both the MySQL
// and the in-memory store report lookups and uniqueness violations with the
// sentinel values below so the service layer can tell them apart without
// knowing the storage technology.
package repository

import "errors"

// ErrNotFound is returned when no user matches the lookup key.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateUsername is returned when the username is already taken.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail is returned when the email is already taken.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateProvider is returned when the (provider, providerId) pair is
// already linked to a user.
var ErrDuplicateProvider = errors.New("federated identity already exists")

// IsDuplicate reports whether err is any uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateUsername) ||
		errors.Is(err, ErrDuplicateEmail) ||
		errors.Is(err, ErrDuplicateProvider)
}
