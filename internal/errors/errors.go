package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Findaly auth core
var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet requirements")

	// Admin token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
	ErrMissingSecret  = errors.New("admin secret not configured")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
