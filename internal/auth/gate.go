package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// AccessGate admits machine callers that present the configured API key.
// There is no built-in default key: an enabled gate without one is a
// configuration error.
type AccessGate struct {
	enabled bool
	digest  [sha256.Size]byte
}

// NewAccessGate returns a gate for key. A disabled gate rejects every key.
func NewAccessGate(enabled bool, key string) (*AccessGate, error) {
	if !enabled {
		return &AccessGate{}, nil
	}
	if key == "" {
		return nil, errors.New("access gate enabled without an api key")
	}
	return &AccessGate{enabled: true, digest: sha256.Sum256([]byte(key))}, nil
}

// Enabled reports whether API keys are accepted at all.
func (g *AccessGate) Enabled() bool {
	return g.enabled
}

// Authorize compares presented against the configured key in constant time.
func (g *AccessGate) Authorize(presented string) bool {
	if !g.enabled || presented == "" {
		return false
	}
	d := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(d[:], g.digest[:]) == 1
}
