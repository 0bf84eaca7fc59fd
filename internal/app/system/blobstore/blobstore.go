// internal/app/system/blobstore/blobstore.go
// Package blobstore stores uploaded files. Production uses MinIO (or any
// S3-compatible service); tests use the in-memory store.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob not found")

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is the storage backend used by uploads.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, key string) error // missing keys are not an error
}

// NewKey returns uploads/YYYY/MM/<uuid>-<name> for a client file name.
func NewKey(now time.Time, filename string) string {
	now = now.UTC()
	return path.Join("uploads", now.Format("2006"), now.Format("01"), uuid.NewString()+"-"+cleanName(filename))
}

// ValidKey reports whether key has the shape produced by NewKey. Handlers
// use it before touching storage with a client-supplied reference.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, "uploads/") || strings.Contains(key, "..") {
		return false
	}
	parts := strings.Split(key, "/")
	return len(parts) == 4 && len(parts[1]) == 4 && len(parts[2]) == 2 && len(parts[3]) > 37
}

// cleanName keeps letters, digits, dot, dash and underscore from the base
// name, lowercased and capped at 64 bytes.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".-")
	if len(out) > 64 {
		out = out[len(out)-64:]
	}
	if out == "" {
		out = "file"
	}
	return out
}
