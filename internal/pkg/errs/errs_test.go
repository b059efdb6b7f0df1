package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_New_Error_Uses_Registered_Template(t *testing.T) {
	req := require.New(t)

	err := NewError(ErrNotGroupMember)

	req.Equal(ErrNotGroupMember, err.Code)
	req.Equal(http.StatusForbidden, err.Status)
	req.Equal("You are not a member of this group.", err.Message)
}

func Test_New_Error_Formats_Details(t *testing.T) {
	err := NewError(ErrGroupNameInvalid, 50)

	require.Equal(t, "Group name is required (max 50 characters).", err.Message)
}

func Test_New_Error_Unknown_Code_Degrades(t *testing.T) {
	err := NewError(424242)

	require.Equal(t, ErrUnknown, err.Code)
	require.Equal(t, http.StatusInternalServerError, err.Status)
}

func Test_From_Unwraps_Chain(t *testing.T) {
	req := require.New(t)

	wrapped := fmt.Errorf("routing: %w", NewError(ErrGroupNotFound))

	req.Equal(ErrGroupNotFound, From(wrapped).Code)
	req.True(errors.Is(wrapped, NewError(ErrGroupNotFound)))
	req.False(errors.Is(wrapped, NewError(ErrNotGroupMember)))
}

func Test_From_Plain_Error_Is_Unknown(t *testing.T) {
	req := require.New(t)

	req.Nil(From(nil))
	req.Equal(ErrUnknown, From(errors.New("boom")).Code)
}
