package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gallery/internal/auth"
	"gallery/internal/http/middleware"
	"gallery/internal/model"
	"gallery/internal/repository/kv"
	"gallery/internal/repository/postgres"
	"gallery/internal/service"
	serviceMocks "gallery/internal/service/mocks"
	storeMocks "gallery/internal/storage/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID(zerolog.Nop()))
	return app
}

func unsignedToken(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("any"))
	require.NoError(t, err)
	return tok
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := newApp()
	app.Get("/health", HealthCheck(postgres.NewCatalogPostgres(db, "gallery_images")))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, CodeServiceUnavailable, body.Code)
		assert.NotEmpty(t, body.RequestID)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthorizeUpload(t *testing.T) {
	mockSvc := new(serviceMocks.MockUploadService)
	app := newApp()
	app.Post("/upload-authorization", AuthorizeUpload(mockSvc))

	expires := time.Date(2026, 10, 18, 12, 15, 0, 0, time.UTC)
	req := model.CredentialRequest{Filename: "a.jpg", ContentType: "image/jpeg", Folder: "uploads"}

	t.Run("success", func(t *testing.T) {
		cred := &model.UploadCredential{
			UploadURL: "https://store/gallery/uploads/id-a.jpg?X-Amz-Signature=abc",
			ExpiresAt: expires,
			ObjectKey: "uploads/id-a.jpg",
		}
		mockSvc.On("Authorize", mock.Anything, req, model.CallerIdentity{}).Return(cred, nil).Once()

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, req))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got model.UploadCredential
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, cred.ObjectKey, got.ObjectKey)
		assert.Equal(t, cred.UploadURL, got.UploadURL)
		assert.True(t, expires.Equal(got.ExpiresAt))
		mockSvc.AssertExpectations(t)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", strings.NewReader("{"))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidRequest, decodeError(t, resp).Code)
	})

	t.Run("invalid request", func(t *testing.T) {
		mockSvc.On("Authorize", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.Join(model.ErrInvalidRequest, errors.New("filename is required"))).Once()

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, model.CredentialRequest{ContentType: "image/png"}))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, CodeInvalidRequest, body.Code)
		assert.Equal(t, "invalid request", body.Error)
		mockSvc.AssertExpectations(t)
	})

	t.Run("store unavailable hides detail", func(t *testing.T) {
		mockSvc.On("Authorize", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.Join(model.ErrUpstreamUnavailable, errors.New("dial tcp 10.0.0.7:9000: refused"))).Once()

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, req))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.NotContains(t, string(raw), "10.0.0.7")
		assert.Contains(t, string(raw), CodeUpstreamUnavailable)
		mockSvc.AssertExpectations(t)
	})
}

func TestRecordImage(t *testing.T) {
	mockSvc := new(serviceMocks.MockCatalogService)
	app := newApp()
	app.Post("/images", RecordImage(mockSvc))

	in := model.CatalogEntryInput{FileURL: "https://x/a.jpg", Folder: "uploads"}

	t.Run("success", func(t *testing.T) {
		entry := &model.CatalogEntry{FileURL: "https://x/a.jpg", Folder: "uploads", CreatedAt: "2026-10-18T12:00:00Z"}
		mockSvc.On("Record", mock.Anything, in).Return(entry, nil).Once()

		r := httptest.NewRequest(http.MethodPost, "/images", jsonBody(t, in))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var got model.CatalogEntry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, *entry, got)
		mockSvc.AssertExpectations(t)
	})

	t.Run("index unreachable", func(t *testing.T) {
		mockSvc.On("Record", mock.Anything, in).Return(nil, errors.Join(model.ErrPersistence, errors.New("timeout"))).Once()

		r := httptest.NewRequest(http.MethodPost, "/images", jsonBody(t, in))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(r)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, CodePersistence, decodeError(t, resp).Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestListImages(t *testing.T) {
	mockSvc := new(serviceMocks.MockCatalogService)
	app := newApp()
	app.Get("/images", ListImages(mockSvc))

	t.Run("empty", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(&service.CatalogListResult{Items: []model.CatalogEntry{}}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/images", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		raw, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"items":[]}`, string(raw))
		mockSvc.AssertExpectations(t)
	})

	t.Run("entries", func(t *testing.T) {
		items := []model.CatalogEntry{
			{FileURL: "https://x/a.jpg", Folder: "uploads", CreatedAt: "2026-01-01T00:00:00Z"},
			{FileURL: "https://x/b.jpg", Folder: "uploads", CreatedAt: model.UnknownCreatedAt},
		}
		mockSvc.On("List", mock.Anything).Return(&service.CatalogListResult{Items: items}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/images", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var got service.CatalogListResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, items, got.Items)
		mockSvc.AssertExpectations(t)
	})

	t.Run("index unreachable", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(nil, errors.Join(model.ErrPersistence, errors.New("scan"))).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/images", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, CodePersistence, decodeError(t, resp).Code)
		mockSvc.AssertExpectations(t)
	})
}

type routeFixture struct {
	app     *fiber.App
	store   *storeMocks.MockStorage
	catalog service.CatalogService
}

func newRouteFixture(t *testing.T, gateEnabled bool) *routeFixture {
	t.Helper()

	gate, err := auth.NewAccessGate(gateEnabled, testAPIKey)
	require.NoError(t, err)

	repo, err := kv.Open("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	store := new(storeMocks.MockStorage)
	store.On("PresignPut", mock.Anything, mock.Anything, "image/jpeg", 15*time.Minute).
		Return(func(_ context.Context, key, _ string, _ time.Duration) string {
			return "https://store/gallery/" + key + "?X-Amz-Signature=sig"
		}, nil).Maybe()
	store.On("PublicURL", mock.Anything).Return(func(key string) string { return "https://x/" + key }).Maybe()

	catalog := service.NewCatalogService(store, repo)
	app := newApp()
	RegisterRoutes(app, Dependencies{
		Index:    repo,
		Gate:     gate,
		Verifier: auth.StructuralVerifier{},
		Uploads:  service.NewUploadService(store, 15*time.Minute),
		Catalog:  catalog,
		Gatherer: prometheus.NewRegistry(),
	})
	return &routeFixture{app: app, store: store, catalog: catalog}
}

func TestUploadAuthorization_Scenario(t *testing.T) {
	body := model.CredentialRequest{Filename: "a.jpg", ContentType: "image/jpeg", Folder: "uploads"}

	t.Run("no credential with gate disabled", func(t *testing.T) {
		f := newRouteFixture(t, false)

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, body))
		r.Header.Set("Content-Type", "application/json")
		resp, _ := f.app.Test(r)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, CodeUnauthorized, decodeError(t, resp).Code)
		f.store.AssertNotCalled(t, "PresignPut", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("valid api key", func(t *testing.T) {
		f := newRouteFixture(t, true)

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, body))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set(middleware.APIKeyHeader, testAPIKey)
		resp, _ := f.app.Test(r)

		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var cred model.UploadCredential
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&cred))
		assert.True(t, strings.HasPrefix(cred.ObjectKey, "uploads/"))
		assert.True(t, strings.HasSuffix(cred.ObjectKey, "a.jpg"))
		assert.Contains(t, cred.UploadURL, cred.ObjectKey)
		assert.True(t, cred.ExpiresAt.After(time.Now()))
	})

	t.Run("valid bearer token", func(t *testing.T) {
		f := newRouteFixture(t, true)

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, body))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+unsignedToken(t, "user-1"))
		resp, _ := f.app.Test(r)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("token without subject", func(t *testing.T) {
		f := newRouteFixture(t, true)

		r := httptest.NewRequest(http.MethodPost, "/upload-authorization", jsonBody(t, body))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+unsignedToken(t, ""))
		resp, _ := f.app.Test(r)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRecordThenList_Scenario(t *testing.T) {
	f := newRouteFixture(t, true)

	r := httptest.NewRequest(http.MethodPost, "/images", jsonBody(t, model.CatalogEntryInput{FileURL: "https://x/a.jpg", Folder: "uploads"}))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(middleware.APIKeyHeader, testAPIKey)
	resp, _ := f.app.Test(r)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var recorded model.CatalogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recorded))

	require.Eventually(t, func() bool {
		resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/images", nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		var list service.CatalogListResult
		if json.NewDecoder(resp.Body).Decode(&list) != nil {
			return false
		}
		for _, e := range list.Items {
			if e.FileURL == "https://x/a.jpg" && e.Folder == "uploads" && e.CreatedAt == recorded.CreatedAt {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRouting(t *testing.T) {
	f := newRouteFixture(t, true)

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := f.app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := f.app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, CodeMethodNotAllowed, decodeError(t, resp).Code)
	})

	t.Run("unauthorized envelope carries request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/images", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.RequestIDHeader, "rid-7")
		resp, _ := f.app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, CodeUnauthorized, body.Code)
		assert.Equal(t, "unauthorized", body.Error)
		assert.Equal(t, "rid-7", body.RequestID)
	})

	t.Run("listing is public", func(t *testing.T) {
		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, "/images", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("listing rejects a bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/images", nil)
		req.Header.Set("Authorization", "Token abc")
		resp, _ := f.app.Test(req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/upload-authorization", nil)
		req.Header.Set("Origin", "https://gallery.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
		resp, _ := f.app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), middleware.APIKeyHeader)
		raw, _ := io.ReadAll(resp.Body)
		assert.Empty(t, raw)
	})

	t.Run("metrics", func(t *testing.T) {
		resp, _ := f.app.Test(httptest.NewRequest(http.MethodGet, middleware.MetricsPath, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
