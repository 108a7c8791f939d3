package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password, so
	// login responses cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUnauthorized means the bearer token is missing, malformed, expired,
	// or its backing session no longer stands.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden means the caller is authenticated but lacks the role or
	// tenant membership for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrSessionInvalid means the session cookie does not resolve to a live
	// session (unknown, revoked, or expired).
	ErrSessionInvalid = errors.New("session invalid")
)
