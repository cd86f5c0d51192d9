package config // config builds the optional Redis client

// Redis backs the refresh-token rotation lock. When it is not configured or
// not reachable at startup the server degrades to an in-process lock.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client from cfg.Redis. It returns nil
// when no address is configured or the server does not answer a ping.
func NewRedisClient(cfg Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.Redis.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
