package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/req"
	"rtchat/internal/pkg/resp"
)

type CreateGroupInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// HandleListGroups returns every group.
func HandleListGroups(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := deps.Manager.Groups.List(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, groups)
	}
}

// HandleCreateGroup creates a group with the caller as its first member.
func HandleCreateGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := jwt.UserFromContext(r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input CreateGroupInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		group, err := deps.Manager.Groups.Create(r.Context(), input.Name, input.Description, user.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, group)
	}
}

// HandleGetGroup returns one group.
func HandleGetGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, ok := deps.Manager.Groups.Get(r.Context(), chi.URLParam(r, "groupId"))
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrGroupNotFound))
			return
		}

		resp.RespondSuccess(w, r, group)
	}
}

// HandleJoinGroup adds the caller to a group.
func HandleJoinGroup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := jwt.UserFromContext(r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		group, err := deps.Manager.Groups.Join(r.Context(), chi.URLParam(r, "groupId"), user.ID)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, group)
	}
}
