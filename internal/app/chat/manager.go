/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines the Manager struct, which wires the presence registry, the group store and
the message router over one storage adapter and owns their shutdown.
*/
package chat

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rtchat/internal/pkg/logx"
)

// Store is the storage adapter the chat core runs on.
type Store interface {
	GroupStore
	MessageStore
}

// Manager struct is the entry point to the chat core.
type Manager struct {
	// Presence tracks live connections.
	Presence *Presence

	// Groups tracks group definitions and members.
	Groups *Groups

	// Router persists and fans out messages.
	Router *Router

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs the chat core over s.
func NewManager(s Store) *Manager {
	groups := NewGroups(s)
	presence := NewPresence(groups)

	return &Manager{
		Presence: presence,
		Groups:   groups,
		Router:   NewRouter(presence, groups, s),
		logger:   logx.Component("manager"),
	}
}

// Start prepares the core for connections by creating the default group.
func (m *Manager) Start(ctx context.Context) error {
	return m.Groups.EnsureDefault(ctx)
}

// Shutdown closes every live connection.
func (m *Manager) Shutdown() {
	m.logger.Info().Int("online", m.Presence.Count()).Msg("Shutting down Manager, closing connections...")

	m.Presence.CloseAll(websocket.CloseGoingAway, "server shutting down")

	m.logger.Info().Msg("Manager shutdown complete.")
}
