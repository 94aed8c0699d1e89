package sdk

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialClaims is what the client can read from a JWT credential without
// verifying it. The signature is the server's business; the client only uses
// these values to label the session and to notice expiry early.
type CredentialClaims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type credentialClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// InspectCredential decodes the claims of a JWT credential.
// ok is false when the credential is not a JWT, in which case it is treated
// as an opaque token with no known expiry.
func InspectCredential(credential string) (CredentialClaims, bool) {
	var claims credentialClaims
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return CredentialClaims{}, false
	}

	out := CredentialClaims{
		Subject: claims.Subject,
		Roles:   claims.Roles,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, true
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
