package service

import (
	"context"
	"errors"

	"velovis/internal/ratelimit"

	"github.com/sirupsen/logrus"
)

// Throttle counts attempts against credential endpoints. *ratelimit.Limiter
// implements it.
type Throttle interface {
	Check(ctx context.Context, scope, identifier string) error
	Hit(ctx context.Context, scope, identifier string) error
	Reset(ctx context.Context, scope, identifier string) error
}

// throttleGate wraps an optional Throttle. A nil throttle admits everything and
// backend failures are logged and ignored so a Redis outage never locks users out.
type throttleGate struct {
	t Throttle
}

func (g throttleGate) admit(err error, op, scope string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ratelimit.ErrRateLimited) {
		return ErrRateLimited
	}
	logrus.WithError(err).WithField("scope", scope).Warnf("rate limiter %s failed, allowing request", op)
	return nil
}

func (g throttleGate) check(ctx context.Context, scope, id string) error {
	if g.t == nil {
		return nil
	}
	return g.admit(g.t.Check(ctx, scope, id), "check", scope)
}

func (g throttleGate) hit(ctx context.Context, scope, id string) error {
	if g.t == nil {
		return nil
	}
	return g.admit(g.t.Hit(ctx, scope, id), "hit", scope)
}

func (g throttleGate) reset(ctx context.Context, scope, id string) {
	if g.t == nil {
		return
	}
	if err := g.t.Reset(ctx, scope, id); err != nil {
		logrus.WithError(err).WithField("scope", scope).Warn("rate limiter reset failed")
	}
}
