package app

import "errors"

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionNotFound indicates that the token's session does not exist or was revoked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken indicates a registration for an existing username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrPasswordMismatch indicates that a password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrWeakPassword indicates a password shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password too short")
	// ErrInvalidUsername indicates an empty or overlong username.
	ErrInvalidUsername = errors.New("username must be 3-64 characters")
	// ErrTokenInvalid indicates a malformed, forged or expired access token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUsersExist is returned when bootstrapping an initial user on a non-empty store.
	ErrUsersExist = errors.New("users already exist")
)
