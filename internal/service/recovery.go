package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"velovis/internal/auth"
	"velovis/internal/config"
	"velovis/internal/entity"
	"velovis/internal/mailer"
	"velovis/internal/model"
	"velovis/internal/ratelimit"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultResetTTL = time.Hour

// RecoveryOptions configures the links and lifetimes used by CredentialRecovery.
type RecoveryOptions struct {
	// APIURL is the public base of the API, used for activation links.
	APIURL string
	// FrontendURL hosts the reset-password page.
	FrontendURL string
	ResetTTL    time.Duration
	BcryptCost  int
}

func RecoveryOptionsFromConfig(cfg config.Config) RecoveryOptions {
	return RecoveryOptions{
		APIURL:      cfg.APIURL,
		FrontendURL: cfg.FrontendURL,
		ResetTTL:    cfg.ResetTokenTTL,
		BcryptCost:  cfg.BcryptCost,
	}
}

// CredentialRecovery 处理注册、激活、修改密码与找回密码
type CredentialRecovery struct {
	repo     model.Repository
	tokens   *auth.TokenService
	mailer   mailer.Mailer
	opts     RecoveryOptions
	throttle throttleGate
	now      func() time.Time
}

func NewCredentialRecovery(repo model.Repository, tokens *auth.TokenService, m mailer.Mailer, opts RecoveryOptions) *CredentialRecovery {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &CredentialRecovery{
		repo:   repo,
		tokens: tokens,
		mailer: m,
		opts:   opts,
		now:    time.Now,
	}
}

// SetThrottle enables forgot-password throttling. nil disables it.
func (r *CredentialRecovery) SetThrottle(t Throttle) {
	r.throttle = throttleGate{t: t}
}

// SetClock overrides the clock used for reset-token expiry and invalidation timestamps.
func (r *CredentialRecovery) SetClock(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Register creates an inactive account with the default USER role and mails
// an activation link. A failed email does not undo the registration.
func (r *CredentialRecovery) Register(ctx context.Context, req entity.AuthRegisterRequest) (*entity.UserSummary, error) {
	username := strings.TrimSpace(req.Username)
	email := normaliseEmail(req.Email)
	displayName := strings.TrimSpace(req.DisplayName)

	if username == "" {
		return nil, invalidInput("username is required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, invalidInput("a valid email is required", nil)
	}
	if req.Password == "" {
		return nil, invalidInput("password is required", nil)
	}
	if err := r.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := r.hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.DbUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		IsActive:     false,
	}
	var roles []string
	var activation string
	err = r.repo.Transaction(ctx, func(tx model.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict("username or email already registered")
			}
			return fmt.Errorf("create user: %w", err)
		}
		role, err := tx.GetRoleByName(ctx, entity.RoleUser)
		switch {
		case err == nil:
			if err := tx.AddUserRole(ctx, user.ID, role.ID); err != nil {
				return fmt.Errorf("attach default role: %w", err)
			}
			roles = append(roles, role.Name)
		case errors.Is(err, gorm.ErrRecordNotFound):
			logrus.WithField("user_id", user.ID).Warn("default USER role missing, user registered without roles")
		default:
			return fmt.Errorf("load default role: %w", err)
		}
		activation, _, err = r.tokens.Issue(auth.PurposeActivation, auth.Identity{UserID: user.ID}, 0)
		if err != nil {
			return fmt.Errorf("issue activation token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	link := r.opts.APIURL + "/auth/activate?token=" + url.QueryEscape(activation)
	r.deliver(ctx, user, mailer.Message{
		To:      user.Email,
		Subject: "Velovis account activation",
		HTML:    activationEmail(greetingName(user), link, r.tokens.TTL(auth.PurposeActivation)),
	})

	logrus.WithField("user_id", user.ID).Info("user registered")
	summary := entity.NewUserSummary(user, roles)
	return &summary, nil
}

func (r *CredentialRecovery) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := r.repo.GetUserByUsername(ctx, username); err == nil {
		return conflict("username is already taken")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check username: %w", err)
	}
	if _, err := r.repo.GetUserByEmail(ctx, email); err == nil {
		return conflict("email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check email: %w", err)
	}
	return nil
}

// Activate flips the account to active. Activating twice is not an error.
func (r *CredentialRecovery) Activate(ctx context.Context, token string) (string, error) {
	claims, err := r.tokens.Verify(auth.PurposeActivation, token)
	if err != nil {
		return "", unauthorized(msgInvalidActivation).withCause(err)
	}
	user, err := r.repo.GetUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFound("user not found")
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if user.IsActive {
		return "account is already activated", nil
	}
	active := true
	if err := r.repo.UpdateUser(ctx, user.ID, entity.UserUpdates{IsActive: &active}); err != nil {
		return "", fmt.Errorf("activate user: %w", err)
	}
	logrus.WithField("user_id", user.ID).Info("user activated")
	return "account activated, you can now log in", nil
}

// ChangePassword replaces the password of an authenticated user and closes
// every session in the same transaction.
func (r *CredentialRecovery) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := r.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("user not found")
		}
		return fmt.Errorf("load user: %w", err)
	}
	if err := auth.VerifyPassword(user.PasswordHash, current); err != nil {
		return forbidden("current password is incorrect")
	}
	if err := auth.CheckPasswordPolicy(next); err != nil {
		return invalidInput(err.Error(), nil)
	}
	hash, err := r.hash(next)
	if err != nil {
		return err
	}

	err = r.repo.Transaction(ctx, func(tx model.Repository) error {
		if err := tx.UpdateUser(ctx, user.ID, entity.UserUpdates{PasswordHash: &hash}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := tx.InvalidateUserRefreshTokens(ctx, user.ID, r.now().UTC()); err != nil {
			return fmt.Errorf("invalidate sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logrus.WithField("user_id", user.ID).Info("password changed")
	return nil
}

// ForgotPassword always answers with the same message so callers cannot probe
// which emails are registered. Earlier reset links of the user stop working.
func (r *CredentialRecovery) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normaliseEmail(email)
	if email == "" {
		return "", invalidInput("email is required", nil)
	}
	if err := r.throttle.hit(ctx, ratelimit.ScopeForgotPassword, email); err != nil {
		return "", err
	}

	user, err := r.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.Debug("password reset requested for unknown email")
			return msgForgotSent, nil
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	raw, err := auth.NewOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	err = r.repo.Transaction(ctx, func(tx model.Repository) error {
		if _, err := tx.DeleteUserPasswordResetTokens(ctx, user.ID); err != nil {
			return fmt.Errorf("drop previous reset tokens: %w", err)
		}
		return tx.CreatePasswordResetToken(ctx, &entity.DbPasswordResetToken{
			UserID:    user.ID,
			TokenHash: auth.HashToken(raw),
			ExpiresAt: r.now().UTC().Add(r.opts.ResetTTL),
		})
	})
	if err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	link := r.opts.FrontendURL + "/reset-password?token=" + url.QueryEscape(raw)
	r.deliver(ctx, user, mailer.Message{
		To:      user.Email,
		Subject: "Velovis password reset",
		HTML:    resetEmail(greetingName(user), link, r.opts.ResetTTL),
	})
	return msgForgotSent, nil
}

// ResetPassword consumes a reset token. Password update, token removal and
// session invalidation commit together.
func (r *CredentialRecovery) ResetPassword(ctx context.Context, token, next string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return forbidden(msgInvalidReset)
	}
	stored, err := r.repo.GetPasswordResetTokenByHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return forbidden(msgInvalidReset)
		}
		return fmt.Errorf("load reset token: %w", err)
	}
	if stored.Expired(r.now()) {
		if err := r.repo.DeletePasswordResetToken(ctx, stored.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).Warn("failed to delete expired reset token")
		}
		return forbidden(msgInvalidReset)
	}
	// 先处理过期令牌，再校验新密码强度
	if err := auth.CheckPasswordPolicy(next); err != nil {
		return invalidInput(err.Error(), nil)
	}

	hash, err := r.hash(next)
	if err != nil {
		return err
	}
	err = r.repo.Transaction(ctx, func(tx model.Repository) error {
		if err := tx.UpdateUser(ctx, stored.UserID, entity.UserUpdates{PasswordHash: &hash}); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden(msgInvalidReset)
			}
			return fmt.Errorf("update password: %w", err)
		}
		// 两个并发请求只有一个能删除成功
		if err := tx.DeletePasswordResetToken(ctx, stored.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return forbidden(msgInvalidReset)
			}
			return fmt.Errorf("delete reset token: %w", err)
		}
		if _, err := tx.InvalidateUserRefreshTokens(ctx, stored.UserID, r.now().UTC()); err != nil {
			return fmt.Errorf("invalidate sessions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logrus.WithField("user_id", stored.UserID).Info("password reset")
	return nil
}

func (r *CredentialRecovery) hash(password string) (string, error) {
	hash, err := auth.HashPasswordWithCost(password, r.opts.BcryptCost)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", invalidInput("password is too long", nil)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// deliver sends msg and only logs failures.
func (r *CredentialRecovery) deliver(ctx context.Context, user *entity.DbUser, msg mailer.Message) {
	if r.mailer == nil {
		logrus.WithField("user_id", user.ID).Warn("no mailer configured, email dropped")
		return
	}
	if err := r.mailer.Send(ctx, msg); err != nil {
		logrus.WithError(err).
			WithField("user_id", user.ID).
			WithField("subject", msg.Subject).
			Error("failed to send email")
	}
}

func greetingName(user *entity.DbUser) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Username
}

func activationEmail(name, link string, ttl time.Duration) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>Welcome to Velovis. Click the link below to activate your account:</p>
<p><a href="%s">Activate my account</a></p>
<p>The link is valid for %s.</p>`, html.EscapeString(name), html.EscapeString(link), humanDuration(ttl))
}

func resetEmail(name, link string, ttl time.Duration) string {
	return fmt.Sprintf(`<p>Hello %s,</p>
<p>We received a request to reset your password. Click the link below to choose a new one:</p>
<p><a href="%s">Reset my password</a></p>
<p>The link is valid for %s. If you did not ask for this, ignore this email.</p>`,
		html.EscapeString(name), html.EscapeString(link), humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
