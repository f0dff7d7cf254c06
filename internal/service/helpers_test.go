package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"velovis/internal/auth"
	"velovis/internal/config"
	"velovis/internal/entity"
	"velovis/internal/mailer"
	"velovis/internal/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureMailer records every message instead of sending it.
type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var linkToken = regexp.MustCompile(`token=([A-Za-z0-9._%\-]+)`)

// lastToken extracts the token embedded in the most recent email sent to addr.
func (m *captureMailer) lastToken(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if !strings.EqualFold(m.sent[i].To, addr) {
			continue
		}
		match := linkToken.FindStringSubmatch(m.sent[i].HTML)
		if match == nil {
			t.Fatalf("email to %s carries no token link: %s", addr, m.sent[i].HTML)
		}
		token, err := url.QueryUnescape(match[1])
		if err != nil {
			t.Fatalf("unescape token: %v", err)
		}
		return token
	}
	t.Fatalf("no email sent to %s", addr)
	return ""
}

type testEnv struct {
	repo     model.Repository
	clock    *fakeClock
	tokens   *auth.TokenService
	mail     *captureMailer
	sessions *SessionManager
	recovery *CredentialRecovery
	roles    *RoleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	repo, err := model.NewMemoryRepository("service_" + name)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	if err := model.SeedDefaults(ctx, repo, config.Config{BcryptCost: 4}); err != nil {
		t.Fatalf("seed defaults: %v", err)
	}

	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokenService(auth.Options{
		AccessSecret:     "access-secret",
		RefreshSecret:    "refresh-secret",
		ActivationSecret: "activation-secret",
		Issuer:           "velovis-test",
		Now:              clock.Now,
	})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	mail := &captureMailer{}
	sessions := NewSessionManager(repo, tokens)
	sessions.SetClock(clock.Now)
	recovery := NewCredentialRecovery(repo, tokens, mail, RecoveryOptions{
		APIURL:      "http://api.test/api",
		FrontendURL: "http://shop.test/",
		BcryptCost:  4,
	})
	recovery.SetClock(clock.Now)

	return &testEnv{
		repo:     repo,
		clock:    clock,
		tokens:   tokens,
		mail:     mail,
		sessions: sessions,
		recovery: recovery,
		roles:    NewRoleService(repo),
	}
}

// registerActive registers and activates a user through the emailed link.
func (e *testEnv) registerActive(t *testing.T, username, password string) *entity.UserSummary {
	t.Helper()
	ctx := context.Background()
	email := username + "@example.com"
	user, err := e.recovery.Register(ctx, entity.AuthRegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if _, err := e.recovery.Activate(ctx, e.mail.lastToken(t, email)); err != nil {
		t.Fatalf("activate %s: %v", username, err)
	}
	return user
}

func expectKind(t *testing.T, err error, want *Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s error, got %v", want.Kind, err)
	}
}
