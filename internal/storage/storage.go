// Package storage contains object storage abstractions for S3-compatible backends.
// The service never moves object bytes itself: clients PUT directly to the
// store using a presigned URL issued here.
package storage

import (
	"context"
	"time"
)

// Storage issues direct-upload grants and resolves object keys to public URLs.
// Implementations are safe for concurrent use.
type Storage interface {
	// PresignPut returns a URL permitting exactly one PUT of key with the given
	// content type until expiry elapses.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	// PublicURL returns the publicly fetchable URL of key.
	PublicURL(key string) string
}

func publicURL(base, key string) string {
	return base + "/" + key
}
