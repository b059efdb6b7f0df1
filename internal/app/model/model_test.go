package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Group_Clone_Does_Not_Alias(t *testing.T) {
	req := require.New(t)

	g := Group{ID: "g1", Members: []string{"a"}}
	c := g.Clone()
	c.Members = append(c.Members, "b")
	c.Members[0] = "z"

	req.Equal([]string{"a"}, g.Members)
	req.True(g.HasMember("a"))
	req.False(g.HasMember("b"))
}

func Test_Group_Clone_Nil_Members(t *testing.T) {
	require.Equal(t, []string{}, Group{ID: "g"}.Clone().Members)
}

func Test_Message_Query_Matches(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	ab := Message{SenderID: "a", RecipientID: "b", Timestamp: now}
	ba := Message{SenderID: "b", RecipientID: "a", Timestamp: now}
	ac := Message{SenderID: "a", RecipientID: "c", Timestamp: now}
	grp := Message{SenderID: "a", RecipientID: "g", IsGroup: true, Timestamp: now}

	direct := MessageQuery{UserA: "a", UserB: "b"}
	req.True(direct.Matches(ab))
	req.True(direct.Matches(ba))
	req.False(direct.Matches(ac))
	req.False(direct.Matches(grp))

	group := MessageQuery{GroupID: "g"}
	req.True(group.Matches(grp))
	req.False(group.Matches(ab))
}
