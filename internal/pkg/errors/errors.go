package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal")

	// secret store outcomes
	ErrMismatch = errors.New("secret mismatch")
	ErrExpired  = errors.New("secret expired")

	// recovery workflow outcomes, safe to show to the caller
	ErrInvalidCode  = errors.New("invalid code")
	ErrCodeExpired  = errors.New("code expired")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWeakPassword = errors.New("weak password")
)

// WeakPasswordError carries the policy violation that rejected a password.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string {
	return ErrWeakPassword.Error() + ": " + e.Reason
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}

func NewWeakPassword(reason string) error {
	return &WeakPasswordError{Reason: reason}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
