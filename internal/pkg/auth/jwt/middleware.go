package jwt

import (
	"context"
	"net/http"
	"strings"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/resp"
)

type contextKey string

// ContextUserKey stores the authenticated model.User in the request context.
const ContextUserKey contextKey = "auth_user"

// TokenFromRequest extracts a bearer token from the Authorization header, falling back
// to the "token" query parameter that browser WebSocket clients use during the handshake.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get("token")
}

// RequireAuth rejects requests without a valid credential with 401 and stores the
// verified identity in the context of the ones it lets through.
func RequireAuth(verifier *Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := verifier.Verify(TokenFromRequest(r))
			if err != nil {
				logx.Debug("Rejected unauthenticated request", "path", r.URL.Path, "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, ContextUserKey, u)
}

// UserFromContext returns the identity stored by RequireAuth.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ContextUserKey).(model.User)
	return u, ok
}
