// Package holdindex keeps a Redis mirror of active seat holds.  Each held
// seat has one key, hold:{showtime}:seat, whose value is the reservation id
// and whose TTL equals the hold duration, so markers vanish on their own
// when a hold lapses.  The braces make every key of a showtime hash to the
// same cluster slot, which the multi-key scripts below rely on.
package holdindex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "hold"

// holdScript writes every marker of one reservation in a single round trip.
// KEYS are the seat keys, ARGV[1] the reservation id, ARGV[2] the TTL in ms.
var holdScript = redis.NewScript(`
	local ttl = tonumber(ARGV[2])
	for i = 1, #KEYS do
		redis.call('SET', KEYS[i], ARGV[1], 'PX', ttl)
	end
	return #KEYS
`)

// releaseScript deletes only the markers still pointing at ARGV[1], so a
// late release never removes a newer reservation's marker.
var releaseScript = redis.NewScript(`
	local removed = 0
	for i = 1, #KEYS do
		if redis.call('GET', KEYS[i]) == ARGV[1] then
			removed = removed + redis.call('DEL', KEYS[i])
		end
	end
	return removed
`)

// RedisIndex implements the ephemeral hold index on Redis.
type RedisIndex struct {
	rdb    redis.UniversalClient
	prefix string
}

// New returns a RedisIndex.  An empty prefix falls back to DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisIndex{rdb: rdb, prefix: prefix}
}

// Key returns the marker key of one seat.
func (x *RedisIndex) Key(showtimeID, seatID uint64) string {
	return fmt.Sprintf("%s:{%d}:%d", x.prefix, showtimeID, seatID)
}

func (x *RedisIndex) keys(showtimeID uint64, seatIDs []uint64) []string {
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = x.Key(showtimeID, id)
	}
	return keys
}

// Hold points every seat marker at reservationID for ttl.
func (x *RedisIndex) Hold(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64, ttl time.Duration) error {
	if len(seatIDs) == 0 {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("holdindex: non-positive ttl %s", ttl)
	}
	err := holdScript.Run(ctx, x.rdb, x.keys(showtimeID, seatIDs),
		strconv.FormatUint(reservationID, 10), ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("holdindex: hold: %w", err)
	}
	return nil
}

// Release drops the markers of seatIDs that still belong to reservationID.
func (x *RedisIndex) Release(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	err := releaseScript.Run(ctx, x.rdb, x.keys(showtimeID, seatIDs),
		strconv.FormatUint(reservationID, 10)).Err()
	if err != nil {
		return fmt.Errorf("holdindex: release: %w", err)
	}
	return nil
}

// Lookup returns the seats that currently carry a marker, mapped to the
// reservation id stored in it.  Unparseable values are skipped.
func (x *RedisIndex) Lookup(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	vals, err := x.rdb.MGet(ctx, x.keys(showtimeID, seatIDs)...).Result()
	if err != nil {
		return nil, fmt.Errorf("holdindex: lookup: %w", err)
	}
	out := make(map[uint64]uint64)
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			continue
		}
		out[seatIDs[i]] = id
	}
	return out, nil
}
