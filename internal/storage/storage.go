// Package storage persists synthesized audio artifacts and hands back a
// reference that later readers can resolve.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// ArtifactStore writes one artifact per key, replacing any previous content.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("artifact key must not be empty")
	}
	cleaned := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("artifact key %q escapes the store root", key)
	}
	return cleaned, nil
}
