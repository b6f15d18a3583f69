package admin

import (
	"errors"
	"fmt"
	"time"

	appErr "eduoj/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 12 * time.Hour
	defaultIssuer   = "eduoj"

	adminSubject = "admin"
)

// AuthConfig holds admin authentication settings. PasswordHash is a bcrypt
// hash of the admin password; plain Password is accepted as a fallback for
// local setups and compared with constant-time bcrypt anyway by hashing it
// at construction.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwtSecret"`
	Issuer       string        `yaml:"issuer"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	PasswordHash string        `yaml:"passwordHash"`
	Password     string        `yaml:"password"`
}

// AuthService issues and verifies admin tokens. There is one admin identity,
// authenticated by password only.
type AuthService struct {
	secret       []byte
	issuer       string
	tokenTTL     time.Duration
	passwordHash []byte
}

// NewAuthService creates an admin auth service.
func NewAuthService(cfg AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("admin jwt secret is required")
	}

	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("admin password or password hash is required")
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = generated
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &AuthService{
		secret:       []byte(cfg.JWTSecret),
		issuer:       issuer,
		tokenTTL:     ttl,
		passwordHash: hash,
	}, nil
}

// Login checks the admin password and returns a signed token.
func (s *AuthService) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", appErr.New(appErr.AdminPasswordIncorrect)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", appErr.Wrap(err, appErr.TokenGenerationFailed)
	}
	return token, nil
}

// Verify checks a raw token and confirms it carries the admin identity.
func (s *AuthService) Verify(raw string) error {
	if raw == "" {
		return appErr.New(appErr.TokenInvalid)
	}
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return appErr.New(appErr.TokenExpired)
		}
		return appErr.New(appErr.TokenInvalid)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return appErr.New(appErr.TokenInvalid)
	}
	if claims.Subject != adminSubject || claims.Issuer != s.issuer {
		return appErr.New(appErr.TokenInvalid)
	}
	return nil
}
