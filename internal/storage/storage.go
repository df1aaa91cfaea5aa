// Package storage provides object storage abstractions for shipping
// sealed index segments.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts object storage operations. Implementations
// include S3 and local filesystem for testing.
type ObjectStorage interface {
	// Upload uploads a local file to object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads an object to a local file.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object from storage. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks whether an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
