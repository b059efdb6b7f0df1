/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"net/http"

	"rtchat/internal/app/account"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/req"
	"rtchat/internal/pkg/resp"
)

type CredentialsInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expiresAt"`
}

func newSessionResponse(s account.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		UserID:    s.User.ID,
		Username:  s.User.Username,
		ExpiresAt: s.ExpiresAt.Unix(),
	}
}

// HandleRegister creates an account and returns a session credential for it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		session, err := deps.Accounts.Register(r.Context(), input.Username, input.Password)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, newSessionResponse(session))
	}
}

// HandleLogin verifies user credentials and issues a session credential.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		session, err := deps.Accounts.Login(r.Context(), input.Username, input.Password)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		logx.Info("User logged in", "user_id", session.User.ID)
		resp.RespondSuccess(w, r, newSessionResponse(session))
	}
}
