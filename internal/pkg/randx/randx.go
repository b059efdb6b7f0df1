/*
Package randx generates identifiers.

Identities, groups and messages are keyed by random UUIDv4 strings, which are unique
across the durable and the in-memory storage tiers without coordination between them.
*/
package randx

import (
	"regexp"

	"github.com/google/uuid"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// UserID returns a new identity id.
func UserID() string {
	return uuid.NewString()
}

// GroupID returns a new group id.
func GroupID() string {
	return uuid.NewString()
}

// MessageID returns a new message id.
func MessageID() string {
	return uuid.NewString()
}

// IsValidUsername reports whether name is 3-20 lowercase letters, digits or underscores.
func IsValidUsername(name string) bool {
	return usernameRegex.MatchString(name)
}
