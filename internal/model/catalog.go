package model

import "time"

// Folder values used to group catalog entries in the gallery UI.
const (
	FolderUploads     = "uploads"
	FolderBackgrounds = "backgrounds"

	// DefaultFolder is applied when a request or stored record omits the folder.
	DefaultFolder = FolderUploads

	// UnknownCreatedAt marks a stored record that carries no creation time.
	UnknownCreatedAt = "unknown"
)

// ValidFolder reports whether f is one of the enumerated gallery folders.
func ValidFolder(f string) bool {
	switch f {
	case FolderUploads, FolderBackgrounds:
		return true
	}
	return false
}

// CredentialRequest is the caller input for an upload authorization.
type CredentialRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Folder      string `json:"folder"`
}

// UploadCredential grants a single direct PUT to the object store.
// It is never persisted; expiry is its only termination.
type UploadCredential struct {
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
	ObjectKey string    `json:"objectKey"`
}

// CatalogEntryInput is what a client reports after a successful upload.
// Either FileURL or ObjectKey must be set.
type CatalogEntryInput struct {
	FileURL   string     `json:"fileUrl"`
	ObjectKey string     `json:"objectKey"`
	Folder    string     `json:"folder"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CatalogEntry is the public shape of one indexed upload.
// CreatedAt is RFC 3339 or UnknownCreatedAt.
type CatalogEntry struct {
	FileURL   string `json:"fileUrl"`
	Folder    string `json:"folder"`
	CreatedAt string `json:"createdAt"`
}

// CatalogRecord is the stored form of a catalog entry. Folder and CreatedAt
// may be absent in records written by older clients.
type CatalogRecord struct {
	ID        string
	FileURL   string
	Folder    string
	CreatedAt *time.Time
}
