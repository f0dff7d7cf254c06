package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"velovis/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose separates the three token families. Each family has its own
// secret and lifetime, and the purpose is also embedded as the "typ" claim.
type Purpose string

const (
	PurposeAccess     Purpose = "access"
	PurposeRefresh    Purpose = "refresh"
	PurposeActivation Purpose = "activation"
)

var (
	// ErrConfiguration means a signing secret is missing; the process must not start.
	ErrConfiguration = errors.New("token configuration invalid")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
)

// Claims represents JWT claims carried by every token family.
type Claims struct {
	Username string  `json:"username,omitempty"`
	Purpose  Purpose `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Identity is what gets signed into a token.
type Identity struct {
	UserID   string
	Username string
}

// Options configures NewTokenService.
type Options struct {
	AccessSecret     string
	RefreshSecret    string
	ActivationSecret string
	Issuer           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ActivationTTL    time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the process configuration onto token options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		AccessSecret:     cfg.JWTAccessSecret,
		RefreshSecret:    cfg.JWTRefreshSecret,
		ActivationSecret: cfg.JWTActivationSecret,
		Issuer:           cfg.JWTIssuer,
		AccessTTL:        cfg.AccessTokenTTL,
		RefreshTTL:       cfg.RefreshTokenTTL,
		ActivationTTL:    cfg.ActivationTokenTTL,
	}
}

type signingKey struct {
	secret []byte
	ttl    time.Duration
}

// TokenService issues and verifies HS256 tokens for each purpose.
type TokenService struct {
	keys   map[Purpose]signingKey
	issuer string
	now    func() time.Time
}

var defaultTTL = map[Purpose]time.Duration{
	PurposeAccess:     15 * time.Minute,
	PurposeRefresh:    7 * 24 * time.Hour,
	PurposeActivation: 24 * time.Hour,
}

// NewTokenService validates the secrets and builds the service.
func NewTokenService(opts Options) (*TokenService, error) {
	secrets := map[Purpose]string{
		PurposeAccess:     opts.AccessSecret,
		PurposeRefresh:    opts.RefreshSecret,
		PurposeActivation: opts.ActivationSecret,
	}
	ttls := map[Purpose]time.Duration{
		PurposeAccess:     opts.AccessTTL,
		PurposeRefresh:    opts.RefreshTTL,
		PurposeActivation: opts.ActivationTTL,
	}

	keys := make(map[Purpose]signingKey, len(secrets))
	for purpose, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: %s secret must not be empty", ErrConfiguration, purpose)
		}
		ttl := ttls[purpose]
		if ttl <= 0 {
			ttl = defaultTTL[purpose]
		}
		keys[purpose] = signingKey{secret: []byte(trimmed), ttl: ttl}
	}

	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = "velovis"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{keys: keys, issuer: issuer, now: now}, nil
}

// TTL returns the configured lifetime for purpose.
func (s *TokenService) TTL(purpose Purpose) time.Duration {
	return s.keys[purpose].ttl
}

// Issue signs a token for purpose. ttl <= 0 uses the purpose's configured lifetime.
func (s *TokenService) Issue(purpose Purpose, id Identity, ttl time.Duration) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, errors.New("token service is nil")
	}
	key, ok := s.keys[purpose]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token purpose %q", purpose)
	}
	if strings.TrimSpace(id.UserID) == "" {
		return "", time.Time{}, errors.New("invalid user for token generation")
	}
	if ttl <= 0 {
		ttl = key.ttl
	}

	now := s.now().UTC()
	expiry := now.Add(ttl)

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	// 激活令牌只需要 sub
	if purpose != PurposeActivation {
		claims.Username = id.Username
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// Verify checks signature, issuer, expiry and purpose. It returns
// ErrTokenExpired for well-formed tokens past expiry and ErrTokenInvalid
// for everything else.
func (s *TokenService) Verify(purpose Purpose, tokenString string) (*Claims, error) {
	if s == nil {
		return nil, errors.New("token service is nil")
	}
	key, ok := s.keys[purpose]
	if !ok {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrTokenInvalid, purpose)
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return key.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, purpose, claims.Purpose)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}
