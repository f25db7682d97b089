package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"gallery/internal/model"
)

// APIKeyHeader carries the machine caller's shared secret.
const APIKeyHeader = "X-API-Key"

const callerLocalKey = "caller"

// KeyGate checks API keys presented by machine callers.
type KeyGate interface {
	Enabled() bool
	Authorize(presented string) bool
}

// TokenVerifier resolves a raw Authorization header to a caller.
type TokenVerifier interface {
	Verify(ctx context.Context, rawHeader string) (model.CallerIdentity, error)
}

// Authenticate resolves the caller from X-API-Key (when the gate is enabled)
// or from the Authorization bearer token. Presented credentials that fail
// are always rejected with 401. When required is false a request without
// any credentials continues anonymously.
func Authenticate(gate KeyGate, verifier TokenVerifier, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := zerolog.Ctx(c.UserContext())

		if key := c.Get(APIKeyHeader); key != "" && gate.Enabled() {
			if !gate.Authorize(key) {
				log.Warn().Str("auth_method", model.AuthMethodAPIKey).Msg("api key rejected")
				return fiber.ErrUnauthorized
			}
			c.Locals(callerLocalKey, model.CallerIdentity{
				Subject: model.MachineSubject,
				Method:  model.AuthMethodAPIKey,
			})
			return c.Next()
		}

		raw := c.Get(fiber.HeaderAuthorization)
		if raw == "" {
			if required {
				return fiber.ErrUnauthorized
			}
			return c.Next()
		}

		caller, err := verifier.Verify(c.UserContext(), raw)
		if err != nil {
			log.Warn().Err(err).Str("auth_method", model.AuthMethodToken).Msg("token rejected")
			return fiber.ErrUnauthorized
		}
		c.Locals(callerLocalKey, caller)
		return c.Next()
	}
}

// CallerFromCtx returns the identity stored by Authenticate.
func CallerFromCtx(c *fiber.Ctx) (model.CallerIdentity, bool) {
	caller, ok := c.Locals(callerLocalKey).(model.CallerIdentity)
	return caller, ok
}
