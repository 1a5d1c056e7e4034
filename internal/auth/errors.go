package auth

import "errors"

var (
	// ErrInvalidCredentials is returned when the admin password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAuthDisabled is returned by token operations when no secret or
	// password hash is configured.
	ErrAuthDisabled = errors.New("admin authentication disabled")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)
