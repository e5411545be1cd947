package imagecache

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// NewDiskBackend creates a diskv store rooted at basePath. Blobs are spread
// over `size/face/shard/` directories so no single directory grows huge.
func NewDiskBackend(basePath string) (*diskv.Diskv, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("imagecache: disk base path required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("imagecache: ensure base path: %w", err)
	}
	return diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPathTransform,
		InverseTransform:  pathToKeyTransform,
		// The memory tier sits in front of this store, diskv's own read
		// cache would only duplicate it.
		CacheSizeMax: 0,
	}), nil
}

// keyToPathTransform maps `size-face-id` onto size/face/<two chars of id>.
func keyToPathTransform(s string) *diskv.PathKey {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return &diskv.PathKey{Path: []string{"misc"}, FileName: s}
	}
	shard := parts[2]
	if len(shard) > 2 {
		shard = shard[:2]
	}
	for len(shard) < 2 {
		shard += "_"
	}
	return &diskv.PathKey{
		Path:     []string{parts[0], parts[1], shard},
		FileName: s,
	}
}

func pathToKeyTransform(pathKey *diskv.PathKey) string {
	return pathKey.FileName
}
