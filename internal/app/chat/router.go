/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines Router, which persists direct and group messages and fans them out to the
live connections of their recipients.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/randx"
	"rtchat/internal/pkg/telemetry"
)

const (
	// DefaultHistoryLimit is the number of messages History returns when no limit is given.
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the number of messages History returns.
	MaxHistoryLimit = 200
)

// MessageStore is the part of the storage adapter the router needs.
type MessageStore interface {
	SaveMessage(ctx context.Context, message model.Message) (model.Message, error)
	ListMessages(ctx context.Context, query model.MessageQuery) ([]model.Message, error)
	FindAccountByID(ctx context.Context, id string) (model.Account, error)
}

// Router routes inbound messages.
type Router struct {
	presence *Presence
	groups   *Groups
	store    MessageStore
	now      func() time.Time

	logger     zerolog.Logger
	deliveries metric.Int64Counter
}

// NewRouter returns a Router resolving recipients through presence and groups.
func NewRouter(presence *Presence, groups *Groups, s MessageStore) *Router {
	return &Router{
		presence:   presence,
		groups:     groups,
		store:      s,
		now:        time.Now,
		logger:     logx.Component("router"),
		deliveries: telemetry.Counter("rtchat/chat", "rtchat.chat.deliveries", "Message deliveries by event type and outcome"),
	}
}

// RouteDirect sends content from sender to recipientID. The message is delivered to the
// recipient if it is online and always echoed to the sender's own connection. Persistence
// is best effort and never blocks delivery.
func (r *Router) RouteDirect(ctx context.Context, sender model.User, recipientID, content string) (model.Message, error) {
	if err := validateContent(content); err != nil {
		return model.Message{}, err
	}

	if err := r.checkRecipient(ctx, recipientID); err != nil {
		return model.Message{}, err
	}

	msg := r.newMessage(sender, recipientID, content, false)
	r.persist(ctx, msg)

	// The sender is resolved with the recipient, so messaging oneself delivers once.
	for _, conn := range r.presence.ResolveMany([]string{recipientID, sender.ID}) {
		r.deliver(ctx, conn, EventPrivateMessage, msg)
	}

	return msg, nil
}

// RouteGroup sends content from sender to every live member of groupID. It fails without
// persisting or delivering anything when the group does not exist or sender is not a member.
func (r *Router) RouteGroup(ctx context.Context, sender model.User, groupID, content string) (model.Message, error) {
	if err := validateContent(content); err != nil {
		return model.Message{}, err
	}

	group, ok := r.groups.Get(ctx, groupID)
	if !ok {
		return model.Message{}, errs.NewError(errs.ErrGroupNotFound)
	}

	if !r.groups.IsMember(group, sender.ID) {
		r.logger.Warn().Str("user_id", sender.ID).Str("group_id", groupID).Msg("Group message from non-member rejected.")
		return model.Message{}, errs.NewError(errs.ErrNotGroupMember)
	}

	msg := r.newMessage(sender, groupID, content, true)
	r.persist(ctx, msg)

	for _, conn := range r.presence.ResolveMany(group.Members) {
		r.deliver(ctx, conn, EventGroupMessage, msg)
	}

	return msg, nil
}

// History returns the newest persisted messages between requester and targetID, or of the
// group targetID when isGroup is set, oldest first. Group history is restricted to members.
func (r *Router) History(ctx context.Context, requester model.User, targetID string, isGroup bool, limit int) ([]model.Message, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	query := model.MessageQuery{UserA: requester.ID, UserB: targetID, Limit: limit}
	if isGroup {
		group, ok := r.groups.Get(ctx, targetID)
		if !ok {
			return nil, errs.NewError(errs.ErrGroupNotFound)
		}
		if !r.groups.IsMember(group, requester.ID) {
			return nil, errs.NewError(errs.ErrNotGroupMember)
		}
		query = model.MessageQuery{GroupID: targetID, Limit: limit}
	}

	messages, err := r.store.ListMessages(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// checkRecipient accepts a live identity without consulting storage.
func (r *Router) checkRecipient(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		return errs.NewError(errs.ErrRecipientNotFound)
	}
	if _, live := r.presence.Resolve(recipientID); live {
		return nil
	}

	_, err := r.store.FindAccountByID(ctx, recipientID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.NewError(errs.ErrRecipientNotFound)
	default:
		return fmt.Errorf("lookup recipient %s: %w", recipientID, err)
	}
}

func (r *Router) newMessage(sender model.User, recipientID, content string, isGroup bool) model.Message {
	return model.Message{
		ID:             randx.MessageID(),
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		RecipientID:    recipientID,
		Content:        content,
		Timestamp:      r.now().UTC(),
		IsGroup:        isGroup,
	}
}

func (r *Router) persist(ctx context.Context, msg model.Message) {
	if _, err := r.store.SaveMessage(ctx, msg); err != nil {
		r.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Bool("is_group", msg.IsGroup).
			Msg("Failed to persist message; delivering anyway.")
	}
}

// deliver is fire-and-forget: a closed or congested connection drops the event.
func (r *Router) deliver(ctx context.Context, conn Conn, event EventType, msg model.Message) {
	outcome := "delivered"
	if err := conn.Deliver(event, msg); err != nil {
		outcome = "dropped"
		r.logger.Debug().Err(err).Str("message_id", msg.ID).Msg("Delivery dropped.")
	}
	r.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", string(event)),
		attribute.String("outcome", outcome),
	))
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrMessageContentEmpty)
	}
	if len(content) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	return nil
}
