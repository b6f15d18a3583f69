package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetWithCachedFetchesOnceThenServesFromCache(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()
	fetches := 0

	fetch := func(context.Context) (string, error) {
		fetches++
		return "value", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	empty := func(s string) bool { return s == "" }

	for i := 0; i < 3; i++ {
		got, err := GetWithCached(ctx, c, "k", time.Minute, time.Second, empty, identity, parse, fetch)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if got != "value" {
			t.Fatalf("round %d: got %q", i, got)
		}
	}
	if fetches != 1 {
		t.Fatalf("expected one fetch, got %d", fetches)
	}
}

func TestGetWithCachedCachesAbsence(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()
	fetches := 0

	fetch := func(context.Context) (string, error) {
		fetches++
		return "", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	empty := func(s string) bool { return s == "" }

	for i := 0; i < 2; i++ {
		got, err := GetWithCached(ctx, c, "missing", time.Minute, time.Minute, empty, identity, parse, fetch)
		if err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
		if got != "" {
			t.Fatalf("round %d: expected empty, got %q", i, got)
		}
	}
	if fetches != 1 {
		t.Fatalf("absence should be cached after one fetch, got %d", fetches)
	}
}

func TestGetWithCachedPropagatesFetchError(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	wantErr := errors.New("db down")

	_, err := GetWithCached(context.Background(), c, "k", time.Minute, time.Second,
		func(s string) bool { return s == "" },
		func(s string) string { return s },
		func(s string) (string, error) { return s, nil },
		func(context.Context) (string, error) { return "", wantErr },
	)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestUpdateCachedInvalidates(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "stale", time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	if err := UpdateCached(ctx, c, "k", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Fatalf("expected invalidated key, got %q", got)
	}
}

func TestUpdateCachedKeepsCacheOnFailure(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "current", time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	wantErr := errors.New("write failed")
	if err := UpdateCached(ctx, c, "k", func(context.Context) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected update error, got %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "current" {
		t.Fatalf("failed update must not invalidate, got %q", got)
	}
}

func TestJitterTTLStaysWithinBounds(t *testing.T) {
	t.Parallel()

	ttl := 10 * time.Minute
	for i := 0; i < 100; i++ {
		got := JitterTTL(ttl)
		if got > ttl || got < ttl-ttl/10 {
			t.Fatalf("jittered ttl %v out of bounds for %v", got, ttl)
		}
	}
	if got := JitterTTL(0); got != 0 {
		t.Fatalf("zero ttl must pass through, got %v", got)
	}
}
