package auth

import "errors"

// Standard errors for account registration and credential validation.
var (
	// ErrUsernameTaken indicates a registration attempt with a username that
	// is already present in the system.
	ErrUsernameTaken = errors.New("username taken")

	// ErrInvalidCredentials indicates a login attempt with an unknown
	// username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a presented token that is missing, malformed,
	// tampered with, or signed with the wrong key.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token has expired")
)
