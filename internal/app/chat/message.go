/*
Package chat contains the core logic for tracking live connections, group membership and message routing.

This file defines the WebSocket event vocabulary and the Conn abstraction the core delivers through.
*/
package chat

import (
	"encoding/json"

	"rtchat/internal/app/model"
)

// EventType names a WebSocket frame.
type EventType string

const (
	// EventUsers carries the full roster of live identities.
	EventUsers EventType = "users"

	// EventGroups carries the list of groups.
	EventGroups EventType = "groups"

	// EventPrivateMessage carries a direct message, inbound and outbound.
	EventPrivateMessage EventType = "private message"

	// EventGroupMessage carries a group message, inbound and outbound.
	EventGroupMessage EventType = "group message"

	// EventError reports a failed inbound event to its sender.
	EventError EventType = "error"
)

const (
	// CloseSessionReplaced is the custom close code (4000-4999 range) sent to a connection
	// superseded by a newer one for the same identity.
	CloseSessionReplaced = 4001

	// MaxContentBytes is the maximum size of message content.
	MaxContentBytes = 5000
)

// Conn is a live connection the core can push events to.
type Conn interface {
	// Deliver queues an event without blocking. It fails when the connection is closed
	// or its queue is full; callers treat that as a dropped delivery.
	Deliver(event EventType, payload any) error

	// Close terminates the connection with a WebSocket close code.
	Close(code int, reason string)
}

// Envelope is the frame written to clients.
type Envelope struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// inboundEnvelope is the frame read from clients; the payload is decoded per type.
type inboundEnvelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PrivateMessagePayload is the inbound body of a direct message.
type PrivateMessagePayload struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// GroupMessagePayload is the inbound body of a group message.
type GroupMessagePayload struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

// ErrorPayload is the body of an EventError frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UsersPayload is the body of an EventUsers frame.
type UsersPayload []model.User

// GroupsPayload is the body of an EventGroups frame.
type GroupsPayload []model.Group
