package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/imagehost/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxPasswordLength = 72 // bcrypt limit
	adminSubject      = "admin"
	tokenIssuer       = "imagehost"
)

// Service issues and validates admin tokens.
type Service struct {
	cfg     config.AuthConfig
	nowFunc func() time.Time
}

// NewService creates a Service from configuration.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Token is a signed admin access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Enabled reports whether destructive endpoints require a token.
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Enabled()
}

// IssueToken checks the admin password and signs a token valid for the
// configured TTL.
func (s *Service) IssueToken(password string) (Token, error) {
	if !s.Enabled() {
		return Token{}, ErrAuthDisabled
	}
	if password == "" || len(password) > maxPasswordLength {
		return Token{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return Token{}, ErrInvalidCredentials
	}

	now := s.nowFunc()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.TokenSecret))
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// ValidateToken verifies signature, issuer, subject and expiry.
func (s *Service) ValidateToken(tokenString string) error {
	if !s.Enabled() {
		return ErrAuthDisabled
	}
	if strings.TrimSpace(tokenString) == "" {
		return ErrUnauthorized
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFunc),
	)

	var claims jwt.RegisteredClaims
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.TokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return ErrUnauthorized
	}
	return nil
}

// HashPassword produces the bcrypt hash expected in
// IMAGEHOST_ADMIN_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > maxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
