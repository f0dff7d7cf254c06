package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"velovis/internal/auth"
	"velovis/internal/entity"
	"velovis/internal/model"
	"velovis/internal/permission"
	"velovis/internal/ratelimit"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenTypeBearer is the token_type returned with every token pair.
const TokenTypeBearer = "Bearer"

// SessionManager 负责登录、刷新令牌轮换、登出以及访问令牌认证
type SessionManager struct {
	repo     model.Repository
	tokens   *auth.TokenService
	resolver *PermissionResolver
	throttle throttleGate
	now      func() time.Time
}

// NewSessionManager 创建会话管理器
func NewSessionManager(repo model.Repository, tokens *auth.TokenService) *SessionManager {
	return &SessionManager{
		repo:     repo,
		tokens:   tokens,
		resolver: NewPermissionResolver(repo),
		now:      time.Now,
	}
}

// SetThrottle enables login throttling. nil disables it.
func (m *SessionManager) SetThrottle(t Throttle) {
	m.throttle = throttleGate{t: t}
}

// SetClock overrides the clock used for invalidation timestamps.
func (m *SessionManager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Login checks credentials and issues a new access/refresh pair.
func (m *SessionManager) Login(ctx context.Context, username, password string) (*entity.AuthTokens, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, unauthorized(msgInvalidCredentials)
	}
	if err := m.throttle.check(ctx, ratelimit.ScopeLogin, username); err != nil {
		return nil, err
	}

	user, err := m.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, m.failLogin(ctx, username)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, forbidden(msgAccountInactive)
	}
	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, m.failLogin(ctx, username)
	}
	m.throttle.reset(ctx, ratelimit.ScopeLogin, username)

	tokens, err := m.issuePair(ctx, m.repo, user)
	if err != nil {
		return nil, err
	}
	logrus.WithField("user_id", user.ID).Info("user logged in")
	return tokens, nil
}

// failLogin counts the failed attempt. Unknown user and wrong password share one message.
func (m *SessionManager) failLogin(ctx context.Context, username string) error {
	if err := m.throttle.hit(ctx, ratelimit.ScopeLogin, username); err != nil {
		return err
	}
	return unauthorized(msgInvalidCredentials)
}

// Refresh rotates a refresh token: the presented token is invalidated and a
// new pair is issued in the same transaction. A token can be rotated once.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (*entity.AuthTokens, error) {
	claims, err := m.tokens.Verify(auth.PurposeRefresh, refreshToken)
	if err != nil {
		return nil, unauthorized("invalid or expired refresh token").withCause(err)
	}

	user, err := m.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, forbidden(msgAccessDenied)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, forbidden(msgAccountInactive)
	}

	var tokens *entity.AuthTokens
	err = m.repo.Transaction(ctx, func(tx model.Repository) error {
		stored, err := findRefreshToken(ctx, tx, user.ID, refreshToken)
		if err != nil {
			return err
		}
		if stored == nil {
			return forbidden(msgAccessDenied)
		}
		ok, err := tx.InvalidateRefreshToken(ctx, stored.ID, m.now().UTC())
		if err != nil {
			return fmt.Errorf("invalidate refresh token: %w", err)
		}
		// 并发刷新时只有一个请求能抢到这一行
		if !ok {
			return forbidden(msgAccessDenied)
		}
		tokens, err = m.issuePair(ctx, tx, user)
		return err
	})
	if err != nil {
		if KindOf(err) == KindForbidden {
			logrus.WithField("user_id", user.ID).Warn("refresh token reuse or unknown token rejected")
		}
		return nil, err
	}
	return tokens, nil
}

// Logout invalidates the session of refreshToken. Unknown, unverifiable and
// already invalidated tokens succeed without effect.
func (m *SessionManager) Logout(ctx context.Context, refreshToken string) error {
	claims, err := m.tokens.Verify(auth.PurposeRefresh, refreshToken)
	if err != nil {
		return nil
	}
	stored, err := findRefreshToken(ctx, m.repo, claims.UserID(), refreshToken)
	if err != nil {
		return err
	}
	if stored == nil {
		return nil
	}
	if _, err := m.repo.InvalidateRefreshToken(ctx, stored.ID, m.now().UTC()); err != nil {
		return fmt.Errorf("invalidate refresh token: %w", err)
	}
	return nil
}

// LogoutAll invalidates every active session of the user and returns how many were closed.
func (m *SessionManager) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := m.repo.InvalidateUserRefreshTokens(ctx, userID, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("invalidate sessions: %w", err)
	}
	logrus.WithField("user_id", userID).WithField("sessions", n).Info("all sessions closed")
	return n, nil
}

// Authenticate verifies an access token and resolves the caller's current permissions.
func (m *SessionManager) Authenticate(ctx context.Context, accessToken string) (*permission.Caller, error) {
	claims, err := m.tokens.Verify(auth.PurposeAccess, accessToken)
	if err != nil {
		return nil, unauthorized("invalid or expired access token").withCause(err)
	}
	user, err := m.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, forbidden(msgAccountInactive)
	}
	return m.resolver.Resolve(ctx, user)
}

// Me returns the caller's profile together with the resolved permissions.
func (m *SessionManager) Me(ctx context.Context, caller *permission.Caller) (*entity.MeResponse, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	user, err := m.repo.GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &entity.MeResponse{
		UserSummary: entity.NewUserSummary(user, caller.Roles),
		Permissions: caller.Permissions.Strings(),
	}, nil
}

// issuePair signs both tokens and records the refresh token digest through repo,
// which may be a transaction.
func (m *SessionManager) issuePair(ctx context.Context, repo model.Repository, user *entity.DbUser) (*entity.AuthTokens, error) {
	identity := auth.Identity{UserID: user.ID, Username: user.Username}

	access, accessExp, err := m.tokens.Issue(auth.PurposeAccess, identity, 0)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := m.tokens.Issue(auth.PurposeRefresh, identity, 0)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := repo.CreateRefreshToken(ctx, &entity.DbRefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashToken(refresh),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &entity.AuthTokens{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        TokenTypeBearer,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// findRefreshToken scans the user's active rows for the digest of raw.
// It returns nil without error when nothing matches.
func findRefreshToken(ctx context.Context, repo model.Repository, userID, raw string) (*entity.DbRefreshToken, error) {
	rows, err := repo.ListActiveRefreshTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	var match *entity.DbRefreshToken
	for i := range rows {
		// 不提前退出，比较次数与命中位置无关
		if auth.TokenMatches(raw, rows[i].TokenHash) && match == nil {
			match = &rows[i]
		}
	}
	return match, nil
}
