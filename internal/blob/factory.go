package blob

import (
	"context"
	"fmt"

	"designmuse/internal/config"
)

// NewFromConfig creates a Store implementation based on the blob
// config type. An empty type defaults to filesystem.
func NewFromConfig(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region)
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem blob store requires root to be set")
		}
		return NewFilesystemStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
