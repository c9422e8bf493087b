// Package services holds the nickname business rules that sit between the
// transports (bot commands, admin HTTP API) and the store.
//
// Service methods return the sentinel errors below for predictable outcomes
// and a *ValidationError for rejected input. Translating them into chat
// replies or HTTP status codes is the caller's job.
package services

import "errors"

var (
	// ErrNicknameExists is returned by Add when the user already has a
	// nickname in the group.
	ErrNicknameExists = errors.New("nickname already set")

	// ErrNicknameNotFound is returned when the user has no nickname in the
	// group.
	ErrNicknameNotFound = errors.New("nickname not found")

	// ErrNicknameUnchanged is returned by Change when the new nickname equals
	// the current one.
	ErrNicknameUnchanged = errors.New("nickname unchanged")

	// ErrMissingNickname is returned when no nickname argument was given.
	ErrMissingNickname = errors.New("nickname missing")

	// ErrStoreUnavailable is returned when the service has no store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreWrite is returned when the store rejected a mutation that
	// passed validation.
	ErrStoreWrite = errors.New("store rejected the change")
)

// ValidationError reports input that failed a validation rule. Reason is
// safe to show to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
