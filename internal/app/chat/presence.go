/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines Presence, the registry of live identities. It holds at most one Conn per
identity id, and every change to it is followed by a full roster broadcast to all connections.
*/
package chat

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
)

type liveConn struct {
	user model.User
	conn Conn
}

// Presence maps identity ids to their current connection.
type Presence struct {
	// mu guards conns and order. Mutations take the write lock, so a reader never sees a
	// connection mid-removal.
	mu sync.RWMutex

	// live connections keyed by identity id.
	conns map[string]liveConn

	// identity ids in registration order.
	order []string

	groups *Groups
	logger zerolog.Logger
}

// NewPresence returns an empty registry that auto-admits connecting identities to the
// default group through groups.
func NewPresence(groups *Groups) *Presence {
	return &Presence{
		conns:  make(map[string]liveConn),
		groups: groups,
		logger: logx.Component("presence"),
	}
}

// Register makes conn the live connection of u.
//
// Registering has a named side effect: u joins the "everyone" group before the connection
// becomes visible, so every live identity is a member of it. A previous connection of u is
// closed with CloseSessionReplaced. All connections then receive the new roster, and conn
// receives the group list.
func (p *Presence) Register(ctx context.Context, u model.User, conn Conn) {
	if _, err := p.groups.Join(ctx, model.EveryoneGroupID, u.ID); err != nil {
		p.logger.Error().Err(err).Str("user_id", u.ID).Msg("Failed to join default group on connect.")
	}

	p.mu.Lock()
	if prev, ok := p.conns[u.ID]; ok {
		if prev.conn != conn {
			p.logger.Info().Str("user_id", u.ID).Msg("Replacing existing connection.")
			prev.conn.Close(CloseSessionReplaced, errs.NewError(errs.ErrSessionReplaced).Message)
		}
	} else {
		p.order = append(p.order, u.ID)
	}
	p.conns[u.ID] = liveConn{user: u, conn: conn}
	p.broadcastRosterLocked()
	count := len(p.conns)
	p.mu.Unlock()

	p.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Int("online", count).Msg("Connection registered.")

	groups, err := p.groups.List(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to list groups for new connection.")
		return
	}
	if err := conn.Deliver(EventGroups, GroupsPayload(groups)); err != nil {
		p.logger.Debug().Err(err).Str("user_id", u.ID).Msg("Group list not delivered.")
	}
}

// Unregister removes u's mapping if conn is still its current connection and broadcasts
// the roster. It reports whether a mapping was removed; disconnects of connections that
// were already replaced are ignored.
func (p *Presence) Unregister(u model.User, conn Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.conns[u.ID]
	if !ok || current.conn != conn {
		return false
	}

	delete(p.conns, u.ID)
	p.order = slices.DeleteFunc(p.order, func(id string) bool { return id == u.ID })
	p.broadcastRosterLocked()

	p.logger.Info().Str("user_id", u.ID).Int("online", len(p.conns)).Msg("Connection unregistered.")
	return true
}

// Resolve returns the live connection of identityID.
func (p *Presence) Resolve(identityID string) (Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lc, ok := p.conns[identityID]
	return lc.conn, ok
}

// ResolveMany returns the live connections of ids from one consistent view of the registry.
// Offline ids are skipped and repeated ids resolve once.
func (p *Presence) ResolveMany(ids []string) []Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[string]struct{}, len(ids))
	conns := make([]Conn, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if lc, ok := p.conns[id]; ok {
			conns = append(conns, lc.conn)
		}
	}
	return conns
}

// Snapshot returns the live identities in registration order.
func (p *Presence) Snapshot() []model.User {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snapshotLocked()
}

// Count returns the number of live identities.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.conns)
}

// CloseAll closes every connection and empties the registry without broadcasting.
func (p *Presence) CloseAll(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, lc := range p.conns {
		lc.conn.Close(code, reason)
	}
	p.conns = make(map[string]liveConn)
	p.order = nil
}

func (p *Presence) snapshotLocked() []model.User {
	users := make([]model.User, 0, len(p.order))
	for _, id := range p.order {
		users = append(users, p.conns[id].user)
	}
	return users
}

// broadcastRosterLocked sends the roster to every connection. Deliver never blocks, so
// this is safe under the lock and keeps rosters arriving in mutation order.
func (p *Presence) broadcastRosterLocked() {
	roster := UsersPayload(p.snapshotLocked())
	for _, id := range p.order {
		lc := p.conns[id]
		if err := lc.conn.Deliver(EventUsers, roster); err != nil {
			p.logger.Debug().Err(err).Str("user_id", id).Msg("Roster not delivered.")
		}
	}
}
