package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/resp"
)

// HandleDirectHistory returns the caller's conversation with peerId.
func HandleDirectHistory(deps *AppDeps) http.HandlerFunc {
	return handleHistory(deps, "peerId", false)
}

// HandleGroupHistory returns the messages of groupId; the caller must be a member.
func HandleGroupHistory(deps *AppDeps) http.HandlerFunc {
	return handleHistory(deps, "groupId", true)
}

func handleHistory(deps *AppDeps, param string, isGroup bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := jwt.UserFromContext(r.Context())
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			limit = n
		}

		messages, err := deps.Manager.Router.History(r.Context(), user, chi.URLParam(r, param), isGroup, limit)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}
