package holdindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMini(t *testing.T) (*miniredis.Miniredis, *RedisIndex) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, New(rdb, "")
}

func TestKey(t *testing.T) {
	x := New(nil, "")
	assert.Equal(t, "hold:{42}:7", x.Key(42, 7))
	assert.Equal(t, "h2:{1}:2", New(nil, "h2").Key(1, 2))
}

func TestHold_WritesMarkersWithTTL(t *testing.T) {
	mr, x := newMini(t)
	ctx := context.Background()

	require.NoError(t, x.Hold(ctx, 5, []uint64{1, 2}, 99, 10*time.Minute))

	for _, k := range []string{"hold:{5}:1", "hold:{5}:2"} {
		v, err := mr.Get(k)
		require.NoError(t, err)
		assert.Equal(t, "99", v)
		assert.Equal(t, 10*time.Minute, mr.TTL(k))
	}
}

func TestHold_MarkersVanishAfterTTL(t *testing.T) {
	mr, x := newMini(t)
	ctx := context.Background()

	require.NoError(t, x.Hold(ctx, 5, []uint64{1}, 99, time.Minute))
	mr.FastForward(time.Minute + time.Second)

	got, err := x.Lookup(ctx, 5, []uint64{1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHold_RejectsNonPositiveTTL(t *testing.T) {
	_, x := newMini(t)
	assert.Error(t, x.Hold(context.Background(), 5, []uint64{1}, 99, 0))
}

func TestRelease_OnlyOwnMarkers(t *testing.T) {
	mr, x := newMini(t)
	ctx := context.Background()

	require.NoError(t, x.Hold(ctx, 5, []uint64{1, 2}, 10, time.Minute))
	// seat 2 was re-held by a newer reservation after seat 10's hold lapsed
	require.NoError(t, x.Hold(ctx, 5, []uint64{2}, 11, time.Minute))

	require.NoError(t, x.Release(ctx, 5, []uint64{1, 2}, 10))

	assert.False(t, mr.Exists("hold:{5}:1"))
	v, err := mr.Get("hold:{5}:2")
	require.NoError(t, err)
	assert.Equal(t, "11", v)
}

func TestLookup(t *testing.T) {
	mr, x := newMini(t)
	ctx := context.Background()

	require.NoError(t, x.Hold(ctx, 5, []uint64{1, 3}, 7, time.Minute))
	require.NoError(t, mr.Set("hold:{5}:4", "garbage"))

	got, err := x.Lookup(ctx, 5, []uint64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{1: 7, 3: 7}, got)
}

func TestLookup_EmptyInput(t *testing.T) {
	db, mock := redismock.NewClientMock()
	x := New(db, "")

	got, err := x.Lookup(context.Background(), 5, nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_MGetResult(t *testing.T) {
	db, mock := redismock.NewClientMock()
	x := New(db, "")

	mock.ExpectMGet("hold:{8}:1", "hold:{8}:2").SetVal([]interface{}{nil, "12"})

	got, err := x.Lookup(context.Background(), 8, []uint64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{2: 12}, got)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestLookup_RedisDown(t *testing.T) {
	db, mock := redismock.NewClientMock()
	x := New(db, "")

	mock.ExpectMGet("hold:{8}:1").SetErr(errors.New("connection refused"))

	_, err := x.Lookup(context.Background(), 8, []uint64{1})
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}
