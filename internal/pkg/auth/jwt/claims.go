package jwt

import (
	"github.com/golang-jwt/jwt"

	"rtchat/internal/app/model"
)

// Payload is the claim set of an RTChat session credential: the standard registered
// claims plus the identity the token was issued to.
type Payload struct {
	jwt.StandardClaims

	// ID is the identity id the credential is bound to.
	ID string `json:"id"`

	// Username is the identity's username at issuance.
	Username string `json:"username"`
}

// User returns the identity carried by the payload.
func (p *Payload) User() model.User {
	return model.User{ID: p.ID, Username: p.Username}
}
