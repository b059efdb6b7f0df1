package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"rtchat/internal/app/model"
	"rtchat/internal/pkg/errs"
)

const (
	// DefaultTokenTTL is the credential lifetime when none is configured.
	DefaultTokenTTL = time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "RTChat-Server"
)

// Verifier issues and validates HS256 session credentials. Credentials are stateless:
// nothing is stored server side, so a credential stays valid until it expires.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier returns a Verifier signing with secret. A non-positive ttl selects DefaultTokenTTL.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Verifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued credentials.
func (v *Verifier) TTL() time.Duration {
	return v.ttl
}

// IssueCredential signs a credential for u and returns it with its expiry.
func (v *Verifier) IssueCredential(u model.User) (string, time.Time, error) {
	now := v.now()
	expiresAt := now.Add(v.ttl)

	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
			Subject:   u.ID,
		},
		ID:       u.ID,
		Username: u.Username,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign credential: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates tokenString and returns the identity it is bound to. Every failure,
// including a missing token, is reported as errs.ErrUnauthorized.
func (v *Verifier) Verify(tokenString string) (model.User, error) {
	payload, err := v.parse(tokenString)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", errs.NewError(errs.ErrUnauthorized), err)
	}
	return payload.User(), nil
}

func (v *Verifier) parse(tokenString string) (*Payload, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	claims := &Payload{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if claims.ID == "" {
		return nil, errors.New("token carries no identity")
	}

	return claims, nil
}
