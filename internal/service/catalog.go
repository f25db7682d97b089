package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gallery/internal/model"
	"gallery/internal/repository"
	"gallery/internal/storage"
)

// CatalogListResult is the service-level DTO for a full catalog listing.
type CatalogListResult struct {
	Items []model.CatalogEntry `json:"items"`
}

// CatalogService is the sole writer and the reader of the metadata index.
type CatalogService interface {
	// Record appends one entry for a completed upload. Duplicates are allowed.
	Record(ctx context.Context, in model.CatalogEntryInput) (*model.CatalogEntry, error)

	// List enumerates the whole index on every call; there is no cache and no
	// partial result.
	List(ctx context.Context) (*CatalogListResult, error)
}

type catalogService struct {
	store storage.Storage
	repo  repository.CatalogRepository
	now   func() time.Time
	newID func() string
}

// NewCatalogService constructs a CatalogService. store resolves object keys
// reported without a full URL.
func NewCatalogService(store storage.Storage, repo repository.CatalogRepository) CatalogService {
	return &catalogService{
		store: store,
		repo:  repo,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (s *catalogService) Record(ctx context.Context, in model.CatalogEntryInput) (*model.CatalogEntry, error) {
	objectKey := strings.TrimSpace(in.ObjectKey)
	fileURL := strings.TrimSpace(in.FileURL)

	if fileURL == "" {
		if objectKey == "" {
			return nil, fmt.Errorf("%w: fileUrl or objectKey is required", model.ErrInvalidRequest)
		}
		fileURL = s.store.PublicURL(objectKey)
	}
	if err := validateFileURL(fileURL); err != nil {
		return nil, err
	}
	key, err := s.objectKeyOf(fileURL)
	if err != nil {
		return nil, err
	}
	if objectKey != "" && objectKey != key {
		return nil, fmt.Errorf("%w: fileUrl does not locate objectKey", model.ErrInvalidRequest)
	}

	folder, err := folderFor(in.Folder, key)
	if err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	if in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		createdAt = in.CreatedAt.UTC()
	}

	rec := model.CatalogRecord{
		ID:        s.newID(),
		FileURL:   fileURL,
		Folder:    folder,
		CreatedAt: &createdAt,
	}

	ctx, span := tracer.Start(ctx, "CatalogService.Record", trace.WithAttributes(
		attribute.String("gallery.folder", folder),
		attribute.String("gallery.entry_id", rec.ID),
	))
	defer span.End()

	if err := s.repo.Append(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return nil, fmt.Errorf("%w: append catalog entry: %w", model.ErrPersistence, err)
	}

	entry := toEntry(rec)
	return &entry, nil
}

func (s *catalogService) List(ctx context.Context) (*CatalogListResult, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.List")
	defer span.End()

	recs, err := s.repo.Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, fmt.Errorf("%w: scan catalog: %w", model.ErrPersistence, err)
	}
	span.SetAttributes(attribute.Int("gallery.entries", len(recs)))

	items := make([]model.CatalogEntry, 0, len(recs))
	for _, r := range recs {
		items = append(items, toEntry(r))
	}
	return &CatalogListResult{Items: items}, nil
}

// toEntry maps a stored record to its public shape, filling absent optional fields.
func toEntry(r model.CatalogRecord) model.CatalogEntry {
	e := model.CatalogEntry{
		FileURL:   r.FileURL,
		Folder:    r.Folder,
		CreatedAt: model.UnknownCreatedAt,
	}
	if e.Folder == "" {
		e.Folder = model.DefaultFolder
	}
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		e.CreatedAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return e
}

func validateFileURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: fileUrl must be an absolute http(s) url", model.ErrInvalidRequest)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: fileUrl must not carry a query or fragment", model.ErrInvalidRequest)
	}
	return nil
}

// objectKeyOf returns the key fileURL points at inside the configured store.
// URLs outside the store's public base are rejected.
func (s *catalogService) objectKeyOf(fileURL string) (string, error) {
	key, ok := strings.CutPrefix(fileURL, s.store.PublicURL(""))
	if !ok || key == "" {
		return "", fmt.Errorf("%w: fileUrl is not an object in the gallery store", model.ErrInvalidRequest)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: fileUrl has an invalid object path", model.ErrInvalidRequest)
		}
	}
	return key, nil
}

// folderFor resolves the entry folder. A key under a known folder prefix
// decides the folder, and an explicit folder must agree with it.
func folderFor(requested, key string) (string, error) {
	requested = strings.TrimSpace(requested)
	prefix, _, ok := strings.Cut(key, "/")
	if !ok || !model.ValidFolder(prefix) {
		return resolveFolder(requested)
	}
	if requested != "" && requested != prefix {
		return "", fmt.Errorf("%w: folder %q does not match object key folder %q", model.ErrInvalidRequest, requested, prefix)
	}
	return prefix, nil
}
