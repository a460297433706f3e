// Package blob stores image content addressed by checksum. The server
// offloads uploaded images here so the database only holds short
// reference URLs instead of multi-megabyte data URIs.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

// ErrNotFound is returned by Get for a key with no stored content.
var ErrNotFound = errors.New("blob not found")

// Store is a content-addressed image store. Put is idempotent: storing
// the same key twice is safe.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string, w io.Writer) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Key returns the content-addressed key for a payload: the hex SHA-256
// of the bytes. Identical uploads map to the same key, so duplicates
// are stored once.
func Key(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
