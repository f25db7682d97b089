package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gallery/internal/model"
	"gallery/internal/storage"
)

var tracer = otel.Tracer("gallery/internal/service")

// UploadService issues direct-upload credentials.
type UploadService interface {
	// Authorize validates req and returns a presigned single-object PUT.
	// It writes no catalog entry and does not check that the upload happens.
	Authorize(ctx context.Context, req model.CredentialRequest, caller model.CallerIdentity) (*model.UploadCredential, error)
}

type uploadService struct {
	store  storage.Storage
	expiry time.Duration
	now    func() time.Time
	newID  func() string
}

// NewUploadService constructs an UploadService whose credentials live for expiry.
func NewUploadService(store storage.Storage, expiry time.Duration) UploadService {
	return &uploadService{
		store:  store,
		expiry: expiry,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *uploadService) Authorize(ctx context.Context, req model.CredentialRequest, caller model.CallerIdentity) (*model.UploadCredential, error) {
	filename := strings.TrimSpace(req.Filename)
	contentType := strings.TrimSpace(req.ContentType)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", model.ErrInvalidRequest)
	}
	if contentType == "" {
		return nil, fmt.Errorf("%w: contentType is required", model.ErrInvalidRequest)
	}

	folder, err := resolveFolder(req.Folder)
	if err != nil {
		return nil, err
	}

	name := sanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: filename %q has no usable characters", model.ErrInvalidRequest, filename)
	}

	// The random segment keeps concurrent uploads of the same name apart.
	key := folder + "/" + s.newID() + "-" + name

	ctx, span := tracer.Start(ctx, "UploadService.Authorize", trace.WithAttributes(
		attribute.String("gallery.folder", folder),
		attribute.String("gallery.object_key", key),
		attribute.String("gallery.caller_method", caller.Method),
	))
	defer span.End()

	issuedAt := s.now()
	uploadURL, err := s.store.PresignPut(ctx, key, contentType, s.expiry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "presign failed")
		return nil, fmt.Errorf("%w: presign upload: %w", model.ErrUpstreamUnavailable, err)
	}

	return &model.UploadCredential{
		UploadURL: uploadURL,
		ExpiresAt: issuedAt.Add(s.expiry).UTC(),
		ObjectKey: key,
	}, nil
}

// resolveFolder applies the default folder and rejects unknown ones.
func resolveFolder(folder string) (string, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return model.DefaultFolder, nil
	}
	if !model.ValidFolder(folder) {
		return "", fmt.Errorf("%w: unknown folder %q", model.ErrInvalidRequest, folder)
	}
	return folder, nil
}

// sanitizeFilename keeps the last path element and replaces anything outside
// [A-Za-z0-9._-] with '_'. Leading dots are dropped so keys never start a
// hidden or relative segment.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if strings.Trim(out, "_") == "" {
		return ""
	}
	return out
}
