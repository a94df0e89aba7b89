package entity

import (
	"errors"
	"time"
)

var (
	// ErrUserExists is returned when registering a user with an email that is already taken.
	ErrUserExists = errors.New("user exists")
	// ErrUserNotFound is returned when no user matches the provided API token.
	ErrUserNotFound = errors.New("user not found")
)

// User is the identity collaborator behind authenticated endpoints.
// The core only ever sees its ID; the API token is an opaque credential
// resolved by the HTTP layer before the core is invoked.
type User struct {
	ID        int64
	Name      string
	Email     string
	APIToken  string
	CreatedAt time.Time
}
