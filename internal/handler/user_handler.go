package handler

import (
	"net/http"

	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/resp"
)

// HandleListUsers returns every registered identity.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := deps.Accounts.ListUsers(r.Context())
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}

// HandleListOnlineUsers returns the identities that currently have a live connection.
func HandleListOnlineUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Manager.Presence.Snapshot())
	}
}

// HandleMe returns the identity bound to the presented credential.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := jwt.UserFromContext(r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		_, online := deps.Manager.Presence.Resolve(user.ID)
		resp.RespondSuccess(w, r, map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"online":   online,
		})
	}
}
