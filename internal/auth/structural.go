package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"gallery/internal/model"
)

// StructuralVerifier only decodes the token payload. Signature, issuer,
// audience and expiry are NOT checked, so any forged token with a "sub" claim
// passes. Configuration refuses it in production; use it for tests and local
// development only.
type StructuralVerifier struct{}

func (StructuralVerifier) Verify(_ context.Context, rawHeader string) (model.CallerIdentity, error) {
	raw, err := bearerToken(rawHeader)
	if err != nil {
		return model.CallerIdentity{}, err
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return model.CallerIdentity{}, unauthorized("malformed token")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return model.CallerIdentity{}, unauthorized("malformed subject claim")
	}
	return tokenIdentity(sub)
}
