//go:generate go run go.uber.org/mock/mockgen -source=backend.go -destination=mocks/mock_backend.go -package=mocks

/*
Package store is the storage adapter of the chat server.

Backend is implemented by a PostgreSQL store, an embedded Badger store and an in-memory
store. Tiered composes a durable Backend with the in-memory one and applies the
fallback policy: the durable tier is always tried first, and any fault other than a
definite answer is absorbed by the memory tier.
*/
package store

import (
	"context"
	"errors"

	"rtchat/internal/app/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique key (id or username) is already taken.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrDurability classifies every other durable backend failure: timeouts, lost
	// connections, I/O errors. Tiered recovers from it and never returns it.
	ErrDurability = errors.New("store: durable backend unavailable")
)

// Backend is a storage tier.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	SaveAccount(ctx context.Context, account model.Account) (model.Account, error)
	FindAccountByID(ctx context.Context, id string) (model.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (model.Account, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	SaveGroup(ctx context.Context, group model.Group) (model.Group, error)
	FindGroup(ctx context.Context, id string) (model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	// AddGroupMember adds userID to the group's members unless already present.
	AddGroupMember(ctx context.Context, groupID, userID string) (model.Group, error)

	SaveMessage(ctx context.Context, message model.Message) (model.Message, error)
	ListMessages(ctx context.Context, query model.MessageQuery) ([]model.Message, error)

	Close() error
}

// isResult reports whether err is a definite answer from a backend rather than a fault.
func isResult(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate)
}

// keepNewest keeps the last limit messages of a chronologically sorted slice.
func keepNewest(messages []model.Message, limit int) []model.Message {
	if limit > 0 && len(messages) > limit {
		return messages[len(messages)-limit:]
	}
	return messages
}
