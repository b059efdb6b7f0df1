package chat

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
)

func Test_Create_Group_Makes_Creator_First_Member(t *testing.T) {
	req := require.New(t)
	m, _ := newTestManager(t)

	group, err := m.Groups.Create(t.Context(), "  Gophers ", "we write Go", "u1")
	req.NoError(err)
	req.NotEmpty(group.ID)
	req.Equal("Gophers", group.Name)
	req.Equal([]string{"u1"}, group.Members)

	got, ok := m.Groups.Get(t.Context(), group.ID)
	req.True(ok)
	req.Equal(group.Name, got.Name)
}

func Test_Create_Group_Validates_Name(t *testing.T) {
	m, _ := newTestManager(t)

	cases := map[string][2]string{
		"empty name":       {"   ", ""},
		"long name":        {strings.Repeat("n", MaxGroupNameLen+1), ""},
		"long description": {"ok", strings.Repeat("d", MaxGroupDescriptionLen+1)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Groups.Create(t.Context(), tc[0], tc[1], "u1")
			require.ErrorIs(t, err, errs.NewError(errs.ErrGroupNameInvalid))
		})
	}
}

func Test_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	m, _ := newTestManager(t)

	group, err := m.Groups.Create(t.Context(), "Gophers", "", "u1")
	req.NoError(err)

	_, err = m.Groups.Join(t.Context(), group.ID, "u2")
	req.NoError(err)
	joined, err := m.Groups.Join(t.Context(), group.ID, "u2")
	req.NoError(err)

	req.Equal([]string{"u1", "u2"}, joined.Members)
}

func Test_Join_Unknown_Group_Is_Not_Found(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Groups.Join(t.Context(), "nope", "u1")
	require.ErrorIs(t, err, errs.NewError(errs.ErrGroupNotFound))

	_, ok := m.Groups.Get(t.Context(), "nope")
	require.False(t, ok)
}

func Test_Concurrent_Joins_Do_Not_Lose_Members(t *testing.T) {
	req := require.New(t)
	m, _ := newTestManager(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Groups.Join(t.Context(), model.EveryoneGroupID, string(rune('A'+i)))
			req.NoError(err)
		}()
	}
	wg.Wait()

	everyone, ok := m.Groups.Get(t.Context(), model.EveryoneGroupID)
	req.True(ok)
	req.Len(everyone.Members, 50)
}

func Test_Ensure_Default_Is_Repeatable(t *testing.T) {
	req := require.New(t)
	m, _ := newTestManager(t)

	req.NoError(m.Groups.EnsureDefault(t.Context()))

	groups, err := m.Groups.List(t.Context())
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(model.EveryoneGroupID, groups[0].ID)
	req.Equal("Everyone", groups[0].Name)
}
