package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"gallery/internal/http/middleware"
	"gallery/internal/model"
)

// Error codes returned in the envelope.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodePersistence         = "PERSISTENCE_ERROR"
	CodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// errorPayload is the standardized error response body.
type errorPayload struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

// writeError writes a standardized JSON error response. message must be
// safe to show to clients.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		Error:     message,
		Code:      code,
		RequestID: middleware.RequestIDFromCtx(c),
	})
}

// writeServiceError maps a service error onto its status and envelope.
// The wrapped detail goes to the request log only.
func writeServiceError(c *fiber.Ctx, err error) error {
	log := zerolog.Ctx(c.UserContext())

	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		log.Info().Err(err).Msg("invalid request")
		return writeError(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request")
	case errors.Is(err, model.ErrUnauthorized):
		log.Warn().Err(err).Msg("unauthorized")
		return writeError(c, fiber.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	case errors.Is(err, model.ErrUpstreamUnavailable):
		log.Error().Err(err).Msg("object store unavailable")
		return writeError(c, fiber.StatusBadGateway, CodeUpstreamUnavailable, "upload authorization unavailable")
	case errors.Is(err, model.ErrPersistence):
		log.Error().Err(err).Msg("catalog unavailable")
		return writeError(c, fiber.StatusServiceUnavailable, CodePersistence, "catalog unavailable")
	default:
		log.Error().Err(err).Msg("unhandled error")
		return writeError(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, CodeBadRequest, "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, CodeUnauthorized, "unauthorized")
		case fiber.StatusNotFound:
			return writeError(c, status, CodeNotFound, "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, CodeMethodNotAllowed, "method not allowed")
		default:
			zerolog.Ctx(c.UserContext()).Error().Err(err).Msg("unhandled error")
			return writeError(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
		}
	}
}
