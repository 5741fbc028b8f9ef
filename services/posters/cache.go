package posters

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// FetchFunc pulls one primary image from the media server.
type FetchFunc func(ctx context.Context, itemID, tag string) ([]byte, error)

// Cache stores media-server artwork on disk so image URLs handed to browsers
// never carry the upstream API token. Entries are keyed by item id and image
// tag; when the server re-renders a poster the tag changes and the old entry
// simply stops being asked for.
type Cache struct {
	fs    afero.Fs
	dir   string
	fetch FetchFunc
}

// NewCache returns a cache writing under dir. A nil fs means the OS
// filesystem.
func NewCache(fs afero.Fs, dir string, fetch FetchFunc) *Cache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Cache{fs: fs, dir: dir, fetch: fetch}
}

// Get returns the image bytes and their sniffed content type, fetching from
// the media server on a cache miss. A failed cache write still serves the
// fetched bytes.
func (c *Cache) Get(ctx context.Context, itemID, tag string) ([]byte, string, error) {
	path := filepath.Join(c.dir, cacheKey(itemID, tag))

	if data, err := afero.ReadFile(c.fs, path); err == nil && len(data) > 0 {
		return data, mimetype.Detect(data).String(), nil
	}

	data, err := c.fetch(ctx, itemID, tag)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image %s: %w", itemID, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("fetch image %s: empty response", itemID)
	}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		slog.Warn("posters.cache.write_failed", "item_id", itemID, "error", err)
	} else if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		slog.Warn("posters.cache.write_failed", "item_id", itemID, "error", err)
	}

	return data, mimetype.Detect(data).String(), nil
}

func cacheKey(itemID, tag string) string {
	sum := sha1.Sum([]byte(itemID + "\x00" + tag))
	return hex.EncodeToString(sum[:])
}
