package repository // repository holds the in-memory user directory

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/authcore/internal/model"
)

// MemoryUserRepo is an in-process user directory with the same uniqueness
// rules as the MySQL schema. It backs STORE_DRIVER=memory and the service tests.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
	now   func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]*model.User), now: time.Now}
}

func (r *MemoryUserRepo) Insert(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := *u
	candidate.Email = NormalizeEmail(candidate.Email)
	if err := r.checkUnique(&candidate, ""); err != nil {
		return err
	}
	now := r.now().UTC()
	candidate.CreatedAt, candidate.UpdatedAt = now, now
	r.users[candidate.ID] = &candidate
	*u = candidate
	return nil
}

func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.ID == id })
}

func (r *MemoryUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrNotFound
	}
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *MemoryUserRepo) FindByProvider(_ context.Context, provider, providerID string) (*model.User, error) {
	return r.find(func(u *model.User) bool {
		return u.Federated() && u.Provider == provider && u.ProviderID == providerID
	})
}

func (r *MemoryUserRepo) FindByResetTokenHash(_ context.Context, hash string) (*model.User, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return r.find(func(u *model.User) bool { return u.ResetTokenHash == hash })
}

func (r *MemoryUserRepo) Update(_ context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := *cur
	upd.Apply(&next)
	next.Email = NormalizeEmail(next.Email)
	if err := r.checkUnique(&next, id); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now().UTC()
	r.users[id] = &next
	out := next
	return &out, nil
}

func (r *MemoryUserRepo) ConsumeResetToken(_ context.Context, id, tokenHash, passwordHash string, now time.Time) (bool, error) {
	if tokenHash == "" {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.ResetTokenHash != tokenHash || u.ResetTokenExpiresAt == nil || !now.Before(*u.ResetTokenExpiresAt) {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = ""
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = r.now().UTC()
	return true, nil
}

func (r *MemoryUserRepo) ClearRefreshToken(_ context.Context, token string) (int64, error) {
	if token == "" {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		if u.RefreshToken == token {
			u.RefreshToken = ""
			u.UpdatedAt = r.now().UTC()
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepo) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// checkUnique must be called with the write lock held. self is the id of the
// record being updated, empty on insert.
func (r *MemoryUserRepo) checkUnique(c *model.User, self string) error {
	for id, u := range r.users {
		if id == self {
			continue
		}
		switch {
		case id == c.ID || u.Username == c.Username:
			return ErrDuplicateUsername
		case c.Email != "" && u.Email == c.Email:
			return ErrDuplicateEmail
		case c.Federated() && u.Provider == c.Provider && u.ProviderID == c.ProviderID:
			return ErrDuplicateProvider
		}
	}
	return nil
}
