package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
	"rtchat/internal/app/store/mocks"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// unsavedStore accepts everything except messages.
type unsavedStore struct {
	*store.Memory
}

func (unsavedStore) SaveMessage(context.Context, model.Message) (model.Message, error) {
	return model.Message{}, errConnRefused
}

func Test_Default_Group_Survives_Outage_After_Restart(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	durable := mocks.NewMockBackend(ctrl)
	durable.EXPECT().Name().Return("postgres").AnyTimes()

	// Given a durable tier that already holds "everyone" and goes down right after startup
	durable.EXPECT().SaveGroup(gomock.Any(), gomock.Any()).Return(model.Group{}, store.ErrDuplicate)
	durable.EXPECT().FindGroup(gomock.Any(), gomock.Any()).Return(model.Group{}, errConnRefused).AnyTimes()
	durable.EXPECT().ListGroups(gomock.Any()).Return(nil, errConnRefused).AnyTimes()
	durable.EXPECT().AddGroupMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(model.Group{}, errConnRefused).AnyTimes()
	durable.EXPECT().SaveMessage(gomock.Any(), gomock.Any()).Return(model.Message{}, errConnRefused).AnyTimes()

	m := NewManager(store.NewTiered(durable, store.NewMemory(), 50*time.Millisecond))
	req.NoError(m.Start(t.Context()))

	// When two users connect
	u1, u2 := model.User{ID: "u1", Username: "u1"}, model.User{ID: "u2", Username: "u2"}
	c1, c2 := &fakeConn{}, &fakeConn{}
	m.Presence.Register(t.Context(), u1, c1)
	m.Presence.Register(t.Context(), u2, c2)

	// Then both joined the default group
	everyone, ok := m.Groups.Get(t.Context(), model.EveryoneGroupID)
	req.True(ok)
	req.ElementsMatch([]string{"u1", "u2"}, everyone.Members)

	// And a message to it reaches both
	_, err := m.Router.RouteGroup(t.Context(), u1, model.EveryoneGroupID, "hello")
	req.NoError(err)
	req.Len(c1.messages(EventGroupMessage), 1)
	req.Len(c2.messages(EventGroupMessage), 1)
}

func Test_Messages_Are_Delivered_When_Persisting_Fails(t *testing.T) {
	req := require.New(t)
	mem := store.NewMemory()
	m := NewManager(unsavedStore{Memory: mem})
	req.NoError(m.Start(t.Context()))
	u1, u2 := addAccount(t, mem, "u1"), addAccount(t, mem, "u2")
	c1, c2 := &fakeConn{}, &fakeConn{}
	m.Presence.Register(t.Context(), u1, c1)
	m.Presence.Register(t.Context(), u2, c2)

	// When storage rejects every message
	_, err := m.Router.RouteDirect(t.Context(), u1, "u2", "hi")
	req.NoError(err)
	_, err = m.Router.RouteGroup(t.Context(), u2, model.EveryoneGroupID, "hello")
	req.NoError(err)

	// Then both connections still receive both messages
	req.Len(c1.messages(EventPrivateMessage), 1)
	req.Len(c2.messages(EventPrivateMessage), 1)
	req.Len(c1.messages(EventGroupMessage), 1)
	req.Len(c2.messages(EventGroupMessage), 1)

	// And nothing was stored
	history, err := m.Router.History(t.Context(), u1, "u2", false, 0)
	req.NoError(err)
	req.Empty(history)
}
