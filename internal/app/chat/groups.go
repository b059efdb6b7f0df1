/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines Groups, the group membership store. Joins and creations are serialized
by a store-level mutex so concurrent joins to the same group never lose a member.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/randx"
)

const (
	// MaxGroupNameLen is the maximum group name length in characters.
	MaxGroupNameLen = 50

	// MaxGroupDescriptionLen is the maximum group description length in characters.
	MaxGroupDescriptionLen = 200
)

// GroupStore is the part of the storage adapter the group store needs.
type GroupStore interface {
	SaveGroup(ctx context.Context, group model.Group) (model.Group, error)
	FindGroup(ctx context.Context, id string) (model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) (model.Group, error)
}

// Groups tracks group definitions and member sets.
type Groups struct {
	// mu serializes mutations.
	mu sync.Mutex

	store  GroupStore
	now    func() time.Time
	logger zerolog.Logger
}

// NewGroups returns a group store backed by s.
func NewGroups(s GroupStore) *Groups {
	return &Groups{
		store:  s,
		now:    time.Now,
		logger: logx.Component("groups"),
	}
}

// EnsureDefault creates the reserved "everyone" group if it does not exist yet.
func (g *Groups) EnsureDefault(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.store.SaveGroup(ctx, model.EveryoneGroup(g.now().UTC()))
	switch {
	case err == nil:
		g.logger.Info().Str("group_id", model.EveryoneGroupID).Msg("Default group created.")
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return nil
	default:
		return fmt.Errorf("ensure default group: %w", err)
	}
}

// Create defines a new group whose first member is creatorID.
func (g *Groups) Create(ctx context.Context, name, description, creatorID string) (model.Group, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)

	if name == "" || utf8.RuneCountInString(name) > MaxGroupNameLen ||
		utf8.RuneCountInString(description) > MaxGroupDescriptionLen {
		return model.Group{}, errs.NewError(errs.ErrGroupNameInvalid, MaxGroupNameLen)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	group, err := g.store.SaveGroup(ctx, model.Group{
		ID:          randx.GroupID(),
		Name:        name,
		Description: description,
		Members:     []string{creatorID},
		CreatedAt:   g.now().UTC(),
	})
	if err != nil {
		return model.Group{}, fmt.Errorf("create group: %w", err)
	}

	g.logger.Info().
		Str("group_id", group.ID).
		Str("creator_id", creatorID).
		Msg("Group created.")
	return group, nil
}

// Join adds identityID to the group. Joining twice is a no-op.
func (g *Groups) Join(ctx context.Context, groupID, identityID string) (model.Group, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	group, err := g.store.AddGroupMember(ctx, groupID, identityID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Group{}, errs.NewError(errs.ErrGroupNotFound)
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("join group %s: %w", groupID, err)
	}
	return group, nil
}

// Get returns the group with the given id; ok is false when it does not exist.
func (g *Groups) Get(ctx context.Context, groupID string) (model.Group, bool) {
	group, err := g.store.FindGroup(ctx, groupID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.logger.Error().Err(err).Str("group_id", groupID).Msg("Group lookup failed.")
		}
		return model.Group{}, false
	}
	return group, true
}

// List returns every group.
func (g *Groups) List(ctx context.Context) ([]model.Group, error) {
	groups, err := g.store.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

// IsMember reports whether identityID belongs to group.
func (g *Groups) IsMember(group model.Group, identityID string) bool {
	return group.HasMember(identityID)
}
