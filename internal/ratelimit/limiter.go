// Package ratelimit throttles credential endpoints with Redis fixed-window counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("rate limiter backend unavailable")
)

const (
	ScopeLogin          = "login"
	ScopeForgotPassword = "forgot"
)

// Rule is the budget for one scope: at most MaxAttempts hits per Window.
type Rule struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter counts attempts per scope and identifier. The window starts at
// the first hit and is not extended by later hits.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[string]Rule
}

// New creates a Limiter. Scopes without a rule are never limited.
func New(client redis.UniversalClient, prefix string, rules map[string]Rule) *Limiter {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "rl"
	}
	copied := make(map[string]Rule, len(rules))
	for scope, rule := range rules {
		copied[scope] = rule
	}
	return &Limiter{redis: client, prefix: prefix, rules: copied}
}

func (l *Limiter) key(scope, identifier string) string {
	return l.prefix + ":" + scope + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

func (l *Limiter) rule(scope string) (Rule, bool) {
	rule, ok := l.rules[scope]
	if !ok || rule.MaxAttempts <= 0 || rule.Window <= 0 {
		return Rule{}, false
	}
	return rule, true
}

// Check reports ErrRateLimited when the identifier already used its budget,
// without counting this call.
func (l *Limiter) Check(ctx context.Context, scope, identifier string) error {
	rule, ok := l.rule(scope)
	if !ok {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(scope, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(rule.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Hit counts one attempt and reports ErrRateLimited once the budget is exceeded.
func (l *Limiter) Hit(ctx context.Context, scope, identifier string) error {
	rule, ok := l.rule(scope)
	if !ok {
		return nil
	}
	key := l.key(scope, identifier)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(rule.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, scope, identifier string) error {
	if err := l.redis.Del(ctx, l.key(scope, identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current count in the window.
func (l *Limiter) Attempts(ctx context.Context, scope, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(scope, identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}
