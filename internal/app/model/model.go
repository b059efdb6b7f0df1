/*
Package model contains the entities shared by the storage, chat and HTTP layers.

User is the public face of an identity and is what travels in presence rosters and JSON
responses; Account adds the credential material that never leaves the server.
*/
package model

import (
	"time"

	"github.com/samber/lo"
)

// EveryoneGroupID is the id of the reserved group every connected identity belongs to.
const EveryoneGroupID = "everyone"

// User is a registered identity.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Account is the persisted form of a User.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// User strips the credential fields.
func (a Account) User() User {
	return User{ID: a.ID, Username: a.Username}
}

// Group is a named set of identities that receive group messages.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	return lo.Contains(g.Members, userID)
}

// Clone returns a copy whose member slice does not alias g's.
func (g Group) Clone() Group {
	g.Members = append([]string(nil), g.Members...)
	if g.Members == nil {
		g.Members = []string{}
	}
	return g
}

// EveryoneGroup returns the definition of the reserved default group.
func EveryoneGroup(now time.Time) Group {
	return Group{
		ID:          EveryoneGroupID,
		Name:        "Everyone",
		Description: "Public group for all users",
		Members:     []string{},
		CreatedAt:   now,
	}
}

// Message is an immutable direct or group message. RecipientID is a user id when
// IsGroup is false and a group id otherwise.
type Message struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	RecipientID    string    `json:"recipientId"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	IsGroup        bool      `json:"isGroupMessage"`
}

// MessageQuery selects one conversation: a group when GroupID is set, otherwise the
// direct exchange between UserA and UserB. Limit keeps only the newest messages.
type MessageQuery struct {
	GroupID string
	UserA   string
	UserB   string
	Limit   int
}

// Matches reports whether m belongs to the conversation q selects.
func (q MessageQuery) Matches(m Message) bool {
	if q.GroupID != "" {
		return m.IsGroup && m.RecipientID == q.GroupID
	}
	if m.IsGroup {
		return false
	}
	return (m.SenderID == q.UserA && m.RecipientID == q.UserB) ||
		(m.SenderID == q.UserB && m.RecipientID == q.UserA)
}
