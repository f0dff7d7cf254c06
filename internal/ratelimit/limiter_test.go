package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestHitFixedWindow(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	l := New(client, "test", map[string]Rule{
		ScopeForgotPassword: {MaxAttempts: 3, Window: time.Hour},
	})

	for i := 0; i < 3; i++ {
		if err := l.Hit(ctx, ScopeForgotPassword, "Ayse@Example.com"); err != nil {
			t.Fatalf("hit %d should pass: %v", i, err)
		}
	}
	if err := l.Hit(ctx, ScopeForgotPassword, "ayse@example.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if ttl := mr.TTL("test:forgot:ayse@example.com"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if err := l.Hit(ctx, ScopeForgotPassword, "ayse@example.com"); err != nil {
		t.Fatalf("window should have reset: %v", err)
	}
}

func TestCheckDoesNotCount(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	l := New(client, "", map[string]Rule{
		ScopeLogin: {MaxAttempts: 2, Window: time.Minute},
	})

	for i := 0; i < 5; i++ {
		if err := l.Check(ctx, ScopeLogin, "ali"); err != nil {
			t.Fatalf("check should pass: %v", err)
		}
	}
	_ = l.Hit(ctx, ScopeLogin, "ali")
	_ = l.Hit(ctx, ScopeLogin, "ali")
	if err := l.Check(ctx, ScopeLogin, "ali"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := l.Reset(ctx, ScopeLogin, "ali"); err != nil {
		t.Fatal(err)
	}
	if n, err := l.Attempts(ctx, ScopeLogin, "ali"); err != nil || n != 0 {
		t.Fatalf("expected counter cleared, got %d (%v)", n, err)
	}
}

func TestUnknownScopeIsUnlimited(t *testing.T) {
	_, client := newTestRedis(t)
	l := New(client, "rl", nil)
	for i := 0; i < 10; i++ {
		if err := l.Hit(context.Background(), "other", "x"); err != nil {
			t.Fatalf("unexpected limit: %v", err)
		}
	}
}

func TestRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	l := New(client, "rl", map[string]Rule{ScopeLogin: {MaxAttempts: 1, Window: time.Minute}})
	mr.Close()

	if err := l.Hit(context.Background(), ScopeLogin, "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
