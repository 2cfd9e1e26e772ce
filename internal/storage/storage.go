// Package storage stores the photos behind PRO history entries.
//
// Two implementations satisfy Storage:
// - LocalStorage: filesystem storage for development
// - S3Storage: any S3-compatible bucket (AWS, R2, MinIO)
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for file storage operations.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key. Fails with ErrKeyExists unless opts.Overwrite.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the data at key. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object, presigned for expires when the
	// backend is private.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key when empty.
	ContentType string

	// MaxSize rejects larger objects with ErrTooLarge. Zero means no limit.
	MaxSize int64

	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./storage".
	BasePath string

	// BaseURL is the public prefix files are served under, e.g.
	// "http://localhost:8080/files".
	BaseURL string
}

// S3Config holds configuration for an S3-compatible bucket.
type S3Config struct {
	// Endpoint overrides the AWS endpoint for R2 or MinIO. Empty uses AWS.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL serves objects without signing when set.
	PublicURL string
}

const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// ProblemImageKey generates the key for a photo attached to a history entry.
// Format: problems/{userID}/{problemID}{ext}
func ProblemImageKey(userID string, problemID uuid.UUID, contentType string) string {
	return fmt.Sprintf("problems/%s/%s%s", safeSegment(userID), problemID, extensionForContentType(contentType))
}

// safeSegment keeps user ids from introducing path separators into keys.
func safeSegment(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
