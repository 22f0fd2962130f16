// Package storage keeps attachment bytes outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"ideaflow/internal/config"
)

var (
	ErrExists   = errors.New("object already exists")
	ErrNotFound = errors.New("object not found")
)

// Store is a flat object namespace addressed by slash separated keys.
type Store interface {
	// Put writes a new object. It never overwrites: ErrExists is returned
	// before r is read, so the caller may retry with another key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// URL returns a public address for key, or "" when none is configured.
	URL(key string) string
}

// New builds the store named by cfg.Driver. Relative fs roots resolve against workspace.
func New(ctx context.Context, cfg config.StorageConfig, workspace string) (Store, error) {
	switch cfg.Driver {
	case "", "fs":
		root := cfg.Root
		if !filepath.IsAbs(root) {
			if workspace == "" {
				workspace = "."
			}
			root = filepath.Join(workspace, root)
		}
		return NewFSStore(root, cfg.PublicBaseURL)
	case "minio":
		return NewMinioStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// CleanKey rejects keys that would escape the namespace.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

func publicURL(base, key string) string {
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
