package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
	"rtchat/internal/app/store/mocks"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func newTiered(t *testing.T) (*store.Tiered, *mocks.MockBackend) {
	t.Helper()
	ctrl := gomock.NewController(t)
	durable := mocks.NewMockBackend(ctrl)
	durable.EXPECT().Name().Return("postgres").AnyTimes()
	return store.NewTiered(durable, store.NewMemory(), 50*time.Millisecond), durable
}

func Test_Save_Falls_Back_To_Memory_When_Durable_Is_Down(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	account := model.Account{ID: "u1", Username: "alice", PasswordHash: "hash"}

	// Given a durable backend that refuses connections
	durable.EXPECT().SaveAccount(gomock.Any(), account).
		Return(model.Account{}, fmt.Errorf("%w: %v", store.ErrDurability, errConnRefused))
	durable.EXPECT().FindAccountByID(gomock.Any(), "u1").Return(model.Account{}, errConnRefused)

	// When saving an account
	saved, err := tiered.SaveAccount(ctx, account)

	// Then the caller still gets the stored entity, and can read it back
	req.NoError(err)
	req.Equal(account, saved)

	found, err := tiered.FindAccountByID(ctx, "u1")
	req.NoError(err)
	req.Equal("alice", found.Username)
}

func Test_Durable_Answers_Are_Not_Faults(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	account := model.Account{ID: "u1", Username: "alice"}

	durable.EXPECT().SaveAccount(gomock.Any(), account).Return(model.Account{}, store.ErrDuplicate)

	_, err := tiered.SaveAccount(ctx, account)
	req.ErrorIs(err, store.ErrDuplicate)
}

func Test_Slow_Durable_Call_Is_Bounded_By_Timeout(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	message := model.Message{ID: "m1", SenderID: "a", RecipientID: "b", Content: "hi", Timestamp: time.Now()}

	durable.EXPECT().SaveMessage(gomock.Any(), message).
		DoAndReturn(func(ctx context.Context, _ model.Message) (model.Message, error) {
			<-ctx.Done()
			return model.Message{}, ctx.Err()
		})

	start := time.Now()
	saved, err := tiered.SaveMessage(ctx, message)

	req.NoError(err)
	req.Equal("m1", saved.ID)
	req.Less(time.Since(start), time.Second)
}

func Test_Find_Group_Missing_In_Durable_Consults_Memory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	group := model.Group{ID: "g1", Name: "outage", Members: []string{"u1"}}

	// Given a group that was created while the durable tier was down
	durable.EXPECT().SaveGroup(gomock.Any(), group).Return(model.Group{}, errConnRefused)
	_, err := tiered.SaveGroup(ctx, group)
	req.NoError(err)

	// When the durable tier is back but does not know the group
	durable.EXPECT().FindGroup(gomock.Any(), "g1").Return(model.Group{}, store.ErrNotFound)
	durable.EXPECT().AddGroupMember(gomock.Any(), "g1", "u2").Return(model.Group{}, store.ErrNotFound)

	found, err := tiered.FindGroup(ctx, "g1")
	req.NoError(err)
	req.Equal("outage", found.Name)

	joined, err := tiered.AddGroupMember(ctx, "g1", "u2")
	req.NoError(err)
	req.Equal([]string{"u1", "u2"}, joined.Members)

	durable.EXPECT().FindGroup(gomock.Any(), "missing").Return(model.Group{}, store.ErrNotFound)
	_, err = tiered.FindGroup(ctx, "missing")
	req.ErrorIs(err, store.ErrNotFound)
}

func Test_Durable_Groups_Stay_Reachable_During_Outage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	everyone := model.EveryoneGroup(time.Now())

	durable.EXPECT().FindGroup(gomock.Any(), everyone.ID).Return(everyone, nil)
	_, err := tiered.FindGroup(ctx, everyone.ID)
	req.NoError(err)

	// When the durable tier drops while a user joins
	durable.EXPECT().AddGroupMember(gomock.Any(), everyone.ID, "u1").Return(model.Group{}, errConnRefused)
	group, err := tiered.AddGroupMember(ctx, everyone.ID, "u1")

	// Then the join is served from the mirrored copy
	req.NoError(err)
	req.Equal([]string{"u1"}, group.Members)

	// And the membership survives the durable tier coming back with its stale copy
	durable.EXPECT().FindGroup(gomock.Any(), everyone.ID).Return(everyone, nil)
	group, err = tiered.FindGroup(ctx, everyone.ID)
	req.NoError(err)
	req.True(group.HasMember("u1"))
}

func Test_List_Messages_Merges_Both_Tiers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m1 := model.Message{ID: "m1", SenderID: "a", RecipientID: "b", Timestamp: at}
	m2 := model.Message{ID: "m2", SenderID: "b", RecipientID: "a", Timestamp: at.Add(time.Minute)}
	m3 := model.Message{ID: "m3", SenderID: "a", RecipientID: "b", Timestamp: at.Add(2 * time.Minute)}

	// m2 only reached memory
	durable.EXPECT().SaveMessage(gomock.Any(), m2).Return(model.Message{}, errConnRefused)
	_, err := tiered.SaveMessage(ctx, m2)
	req.NoError(err)

	query := model.MessageQuery{UserA: "a", UserB: "b", Limit: 10}
	durable.EXPECT().ListMessages(gomock.Any(), query).Return([]model.Message{m1, m3}, nil)

	got, err := tiered.ListMessages(ctx, query)
	req.NoError(err)
	req.Equal([]model.Message{m1, m2, m3}, got)
}

func Test_List_Users_Survives_Durable_Fault(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)

	durable.EXPECT().SaveAccount(gomock.Any(), gomock.Any()).Return(model.Account{}, errConnRefused)
	_, err := tiered.SaveAccount(ctx, model.Account{ID: "u1", Username: "alice"})
	req.NoError(err)

	durable.EXPECT().ListUsers(gomock.Any()).Return(nil, errConnRefused)
	users, err := tiered.ListUsers(ctx)
	req.NoError(err)
	req.Equal([]model.User{{ID: "u1", Username: "alice"}}, users)
}

func Test_Memory_Only_Store(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered := store.NewTiered(nil, nil, 0)

	req.False(tiered.Durable())
	req.Equal("memory", tiered.Name())

	_, err := tiered.SaveGroup(ctx, model.EveryoneGroup(time.Now()))
	req.NoError(err)
	groups, err := tiered.ListGroups(ctx)
	req.NoError(err)
	req.Len(groups, 1)
	req.NoError(tiered.Close())
}

func Test_Existing_Durable_Group_Is_Mirrored_On_Duplicate_Save(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	everyone := model.EveryoneGroup(time.Now())
	stored := everyone.Clone()
	stored.Members = []string{"u1"}

	// Given a durable tier that already holds the group from a previous run
	durable.EXPECT().SaveGroup(gomock.Any(), everyone).Return(model.Group{}, store.ErrDuplicate)
	durable.EXPECT().FindGroup(gomock.Any(), everyone.ID).Return(stored, nil)

	_, err := tiered.SaveGroup(ctx, everyone)
	req.ErrorIs(err, store.ErrDuplicate)

	// When the durable tier then goes down
	durable.EXPECT().FindGroup(gomock.Any(), everyone.ID).Return(model.Group{}, errConnRefused)

	// Then the group and its members are still served
	group, err := tiered.FindGroup(ctx, everyone.ID)
	req.NoError(err)
	req.Equal([]string{"u1"}, group.Members)
}

func Test_Duplicate_Save_Keeps_Group_Reachable_When_Durable_Read_Fails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	tiered, durable := newTiered(t)
	everyone := model.EveryoneGroup(time.Now())

	// Given the durable tier reports the group exists but fails right after
	durable.EXPECT().SaveGroup(gomock.Any(), everyone).Return(model.Group{}, store.ErrDuplicate)
	durable.EXPECT().FindGroup(gomock.Any(), everyone.ID).Return(model.Group{}, errConnRefused).Times(2)
	durable.EXPECT().AddGroupMember(gomock.Any(), everyone.ID, "u1").Return(model.Group{}, errConnRefused)

	_, err := tiered.SaveGroup(ctx, everyone)
	req.ErrorIs(err, store.ErrDuplicate)

	// When a member joins during the outage
	_, err = tiered.AddGroupMember(ctx, everyone.ID, "u1")
	req.NoError(err)

	// Then the group is served from memory with the new member
	group, err := tiered.FindGroup(ctx, everyone.ID)
	req.NoError(err)
	req.True(group.HasMember("u1"))
}
