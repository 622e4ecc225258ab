// Package storage persists uploaded image bytes. LocalStorage writes to a
// directory on disk; S3Storage writes to an S3 bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned when an object does not exist.
var ErrNotExist = errors.New("storage: object does not exist")

// ErrExist is returned by Save when the name is already taken.
var ErrExist = errors.New("storage: object already exists")

// Storage stores named blobs. Names are flat: no directory separators.
type Storage interface {
	// Save writes r under name. It fails with ErrExist if name is taken.
	Save(ctx context.Context, name string, r io.Reader, contentType string) error
	// Open returns the object's contents and content type.
	Open(ctx context.Context, name string) (io.ReadCloser, string, error)
	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context, name string) error
	// Exists reports whether name is taken.
	Exists(ctx context.Context, name string) (bool, error)
}

// validName rejects names that could escape the storage root.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if r == '/' || r == '\\' || r == 0 {
			return false
		}
	}
	return true
}

var errInvalidName = errors.New("storage: invalid object name")
