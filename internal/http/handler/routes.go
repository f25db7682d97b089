package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gallery/internal/http/middleware"
	"gallery/internal/model"
	"gallery/internal/service"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the catalog index is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Index    Pinger
	Gate     middleware.KeyGate
	Verifier middleware.TokenVerifier
	Uploads  service.UploadService
	Catalog  service.CatalogService
	// Gatherer backs /metrics. Nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes attaches CORS, probes, metrics and the gallery API to app.
func RegisterRoutes(app *fiber.App, d Dependencies) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  strings.Join([]string{fiber.MethodGet, fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders:  strings.Join([]string{fiber.HeaderAuthorization, fiber.HeaderContentType, middleware.APIKeyHeader, middleware.RequestIDHeader}, ","),
		ExposeHeaders: middleware.RequestIDHeader,
	}))

	app.Get("/health", HealthCheck(d.Index))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get(middleware.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	requireCaller := middleware.Authenticate(d.Gate, d.Verifier, true)
	optionalCaller := middleware.Authenticate(d.Gate, d.Verifier, false)

	app.Post("/upload-authorization", requireCaller, AuthorizeUpload(d.Uploads))
	app.Post("/images", requireCaller, RecordImage(d.Catalog))
	app.Get("/images", optionalCaller, ListImages(d.Catalog))
}

// HealthCheck pings the catalog index.
//
// @Summary  Readiness probe
// @Tags     probes
// @Produce  json
// @Success  200 {object} map[string]string
// @Failure  503 {object} errorPayload
// @Router   /health [get]
func HealthCheck(index Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if err := index.Ping(ctx); err != nil {
			zerolog.Ctx(c.UserContext()).Warn().Err(err).Msg("health check failed")
			return writeError(c, fiber.StatusServiceUnavailable, CodeServiceUnavailable, "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// AuthorizeUpload issues a presigned PUT for one object.
//
// @Summary   Authorize a direct upload
// @Tags      images
// @Accept    json
// @Produce   json
// @Param     request body model.CredentialRequest true "file to upload"
// @Success   201 {object} model.UploadCredential
// @Failure   400 {object} errorPayload
// @Failure   401 {object} errorPayload
// @Failure   502 {object} errorPayload
// @Security  BearerAuth
// @Security  ApiKeyAuth
// @Router    /upload-authorization [post]
func AuthorizeUpload(svc service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req model.CredentialRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		}

		caller, _ := middleware.CallerFromCtx(c)
		cred, err := svc.Authorize(c.UserContext(), req, caller)
		if err != nil {
			return writeServiceError(c, err)
		}

		zerolog.Ctx(c.UserContext()).Info().
			Str("subject", caller.Subject).
			Str("auth_method", caller.Method).
			Str("object_key", cred.ObjectKey).
			Msg("upload authorized")
		return c.Status(fiber.StatusCreated).JSON(cred)
	}
}

// RecordImage appends a catalog entry for a completed upload.
//
// @Summary   Report a completed upload
// @Tags      images
// @Accept    json
// @Produce   json
// @Param     entry body model.CatalogEntryInput true "uploaded object"
// @Success   201 {object} model.CatalogEntry
// @Failure   400 {object} errorPayload
// @Failure   401 {object} errorPayload
// @Failure   503 {object} errorPayload
// @Security  BearerAuth
// @Security  ApiKeyAuth
// @Router    /images [post]
func RecordImage(svc service.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in model.CatalogEntryInput
		if err := c.BodyParser(&in); err != nil {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		}

		entry, err := svc.Record(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// ListImages returns every catalog entry.
//
// @Summary  List gallery images
// @Tags     images
// @Produce  json
// @Success  200 {object} service.CatalogListResult
// @Failure  401 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Router   /images [get]
func ListImages(svc service.CatalogService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.List(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
