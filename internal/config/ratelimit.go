package config

import "time"

// RateLimit configures the Redis token bucket in front of hold requests.
type RateLimit struct {
	Enabled        bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	Capacity       int           `yaml:"capacity" env:"RATE_LIMIT_CAPACITY" env-default:"20"`
	RefillTokens   int           `yaml:"refill_tokens" env:"RATE_LIMIT_REFILL_TOKENS" env-default:"1"`
	RefillInterval time.Duration `yaml:"refill_interval" env:"RATE_LIMIT_REFILL_INTERVAL" env-default:"1s"`
	TTL            time.Duration `yaml:"ttl" env:"RATE_LIMIT_TTL" env-default:"10m"`
	KeyStrategy    string        `yaml:"key_strategy" env:"RATE_LIMIT_KEY_STRATEGY" env-default:"user_route"`
	Prefix         string        `yaml:"prefix" env:"RATE_LIMIT_PREFIX" env-default:"rl"`
}

// normalize clamps values that would make the bucket misbehave.
func (r *RateLimit) normalize() {
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillTokens < 1 {
		r.RefillTokens = 1
	}
	if r.RefillInterval <= 0 {
		r.RefillInterval = time.Second
	}
	// keep idle buckets around for at least a few refill periods
	if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
		r.TTL = minTTL
	}
	if r.Prefix == "" {
		r.Prefix = "rl"
	}
}
