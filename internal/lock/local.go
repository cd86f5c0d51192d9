package lock // lock provides the in-process rotation lock

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// LocalLocker implements Locker inside one process. It is the fallback when
// Redis is not reachable.
type LocalLocker struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewLocal creates a LocalLocker and starts its expiry loop. Call Stop on
// shutdown.
func NewLocal() *LocalLocker {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go cache.Start()
	return &LocalLocker{cache: cache}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	_, held := l.cache.GetOrSet(key, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))
	return !held, nil
}

func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Stop ends the expiry loop.
func (l *LocalLocker) Stop() { l.cache.Stop() }
