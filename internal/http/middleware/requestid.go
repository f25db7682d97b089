package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// RequestIDHeader is the standard header name used to propagate request IDs.
	RequestIDHeader = "X-Request-ID"
	// RequestIDLocalKey is the key used to store the request ID in Fiber's context locals.
	RequestIDLocalKey = "request_id"
)

// RequestID ensures every request has a request ID.
//
// Behavior:
//   - Reads X-Request-ID from the incoming request header.
//   - If missing, generates a new UUID.
//   - Stores the value in Fiber context locals under RequestIDLocalKey.
//   - Attaches a child of log carrying request_id to the user context, so
//     downstream code can log with zerolog.Ctx(c.UserContext()).
//   - Adds X-Request-ID to the response header with the same value.
func RequestID(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(RequestIDLocalKey, id)

		reqLog := log.With().Str(RequestIDLocalKey, id).Logger()
		c.SetUserContext(reqLog.WithContext(c.UserContext()))

		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}

// RequestIDFromCtx returns the ID stored by RequestID, or "".
func RequestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(RequestIDLocalKey).(string); ok {
		return s
	}
	return ""
}
