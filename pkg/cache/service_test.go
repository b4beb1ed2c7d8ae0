package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestService(t *testing.T) (*miniredis.Miniredis, Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewService(client)
}

func TestService_SetGetDelete(t *testing.T) {
	mr, svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", payload{Name: "a", Count: 2}, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	var got payload
	require.NoError(t, svc.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Count: 2}, got)

	require.NoError(t, svc.Delete(ctx, "k"))
	assert.ErrorIs(t, svc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestService_GetOrSet(t *testing.T) {
	_, svc := newTestService(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return payload{Name: "fresh", Count: calls}, nil
	}

	var first payload
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &first))
	assert.Equal(t, payload{Name: "fresh", Count: 1}, first)

	var second payload
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestService_GetOrSet_FetcherError(t *testing.T) {
	_, svc := newTestService(t)
	boom := errors.New("boom")

	var got payload
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) {
		return nil, boom
	}, &got)
	assert.ErrorIs(t, err, boom)
}

func TestService_GetOrSet_RedisDown(t *testing.T) {
	mr, svc := newTestService(t)
	mr.Close()

	var got payload
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) {
		return payload{Name: "db"}, nil
	}, &got)
	require.NoError(t, err)
	assert.Equal(t, "db", got.Name)
}
