package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/authcore/internal/apperr"
	"github.com/iliyamo/authcore/internal/lock"
	"github.com/iliyamo/authcore/internal/repository"
	"github.com/iliyamo/authcore/internal/utils"
)

// testClock is a settable time source shared by the codec and the flows.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMessage struct {
	To      string
	Variant Variant
	Data    map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to string, variant Variant, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{To: to, Variant: variant, Data: data})
	return n.err
}

func (n *fakeNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fixture struct {
	clock    *testClock
	users    *repository.MemoryUserRepo
	hasher   *utils.Hasher
	codec    *utils.TokenCodec
	locker   *lock.LocalLocker
	settings Settings
	sessions *SessionManager
	recovery *PasswordRecovery
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock:    clock,
		users:    repository.NewMemoryUserRepo(),
		hasher:   utils.NewHasher(bcrypt.MinCost),
		codec:    utils.NewTokenCodec(utils.WithClock(clock.Now)),
		locker:   lock.NewLocal(),
		notifier: &fakeNotifier{},
		settings: Settings{
			AccessSecret:      "access-secret",
			RefreshSecret:     "refresh-secret",
			AccessTTL:         15 * time.Minute,
			RefreshTTL:        7 * 24 * time.Hour,
			RotationThreshold: 24 * time.Hour,
			ResetTTL:          15 * time.Minute,
		},
	}
	t.Cleanup(f.locker.Stop)
	f.sessions = NewSessionManager(f.users, f.hasher, f.codec, f.locker, f.settings, zerolog.Nop())
	f.recovery = NewPasswordRecovery(f.users, f.hasher, f.notifier, f.settings.ResetTTL, zerolog.Nop())
	f.recovery.now = clock.Now
	return f
}

func (f *fixture) register(t *testing.T, username, email, password string) string {
	t.Helper()
	u, err := f.sessions.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return u.ID
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "not an apperr: %v", err)
	require.Equal(t, kind, ae.Kind, "error: %v", err)
}
