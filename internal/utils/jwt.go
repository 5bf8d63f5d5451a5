package utils // package utils provides helper functions for participant token creation

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ParticipantToken represents a signed JWT handed to a device after it
// claims a table invite.  The Token field contains the JWT string; Exp
// stores the expiration timestamp.  Tokens are encoded in the
// Authorization header when calling protected endpoints.  Credential
// management proper (accounts, passwords, refresh flows) belongs to
// the external identity collaborator; this service only mints
// short-lived tokens for anonymous invite claims and verifies whatever
// the collaborator signed with the shared secret.
type ParticipantToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewParticipantToken builds and signs an HS256 JWT for a participant.
// It takes the signing secret, the opaque participant id, the role
// ("CLIENT" or "STAFF"), and a TTL in minutes.  The JWT includes the
// standard claims: subject (sub), role, expiration (exp) and issued at
// (iat), matching what the JWTAuth middleware extracts.
func NewParticipantToken(secret, participantID, role string, ttlMin int) (ParticipantToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  participantID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return ParticipantToken{}, err
	}
	return ParticipantToken{Token: signed, Exp: exp}, nil
}
