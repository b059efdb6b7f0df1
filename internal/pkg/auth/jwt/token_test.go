package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
)

var alice = model.User{ID: "u-alice", Username: "alice"}

func Test_Verifier_Issue_And_Verify(t *testing.T) {
	req := require.New(t)
	v := NewVerifier("secret", time.Hour)

	token, expiresAt, err := v.IssueCredential(alice)
	req.NoError(err)
	req.NotEmpty(token)
	req.WithinDuration(time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	got, err := v.Verify(token)
	req.NoError(err)
	req.Equal(alice, got)
}

func Test_Verifier_Default_TTL(t *testing.T) {
	require.Equal(t, DefaultTokenTTL, NewVerifier("secret", 0).TTL())
}

func Test_Verifier_Rejects(t *testing.T) {
	v := NewVerifier("secret", time.Hour)

	expired := NewVerifier("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.IssueCredential(alice)
	require.NoError(t, err)

	forgedToken, _, err := NewVerifier("other-secret", time.Hour).IssueCredential(alice)
	require.NoError(t, err)

	noneToken, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, &Payload{ID: alice.ID}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	anonymousToken, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &Payload{
		StandardClaims: gojwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"garbage", "not.a.jwt"},
		{"expired", expiredToken},
		{"wrong signature", forgedToken},
		{"alg none", noneToken},
		{"no identity", anonymousToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			require.Error(t, err)
			require.ErrorIs(t, err, errs.NewError(errs.ErrUnauthorized))
		})
	}
}
