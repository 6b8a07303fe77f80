package config

// This file defines the Redis client constructor.  Redis backs the
// ephemeral hold index and the rate limiter.  If the server cannot be
// reached at startup the constructor returns nil and callers degrade
// gracefully: holds are checked against MySQL only and rate limiting is
// disabled.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the connection settings.  Addr takes precedence over
// Host/Port when set.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	TLS      bool   `yaml:"tls" env:"REDIS_TLS" env-default:"false"`
}

// Address resolves the host:port to dial.
func (r Redis) Address() string {
	if r.Addr != "" {
		return r.Addr
	}
	return r.Host + ":" + r.Port
}

// NewRedisClient dials Redis and pings it with a short timeout.  The
// returned client is nil if the ping fails.
func NewRedisClient(cfg Redis) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Address(),
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
