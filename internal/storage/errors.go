package storage

import "errors"

var (
	// ErrUserNotFound is returned when no credential record exists for
	// a user id. Absence is a normal state, not a failure: it means
	// the user has never been provisioned.
	ErrUserNotFound = errors.New("user not found")
)
