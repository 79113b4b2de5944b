package storage

import (
	"context"
	"fmt"

	"warbler/internal/config"
	"warbler/internal/logger"
)

var log = logger.Component("Storage")

// ObjectStore holds uploaded profile images.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error
	Delete(ctx context.Context, key string) error
	// URL is the public address of key.
	URL(key string) string
}

// New returns the store selected by STORAGE_DRIVER, or nil when uploads are disabled.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageDisabled:
		log.Info().Msg("Image uploads disabled")
		return nil, nil
	case config.StorageR2:
		store, err := NewR2Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageMinio:
		store, err := NewMinioStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
