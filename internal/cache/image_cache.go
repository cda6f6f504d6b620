package cache

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".jfif"}

// ImageCache indexes the survey image directory once at construction
// and resolves question/level image references to file paths. Survey
// definitions are hand-written, so lookups tolerate a wrong extension
// and small filename typos (prefix/suffix basename matches).
type ImageCache struct {
	dir   string
	files map[string]string // lowercased filename -> absolute path
	log   *zap.Logger
}

func NewImageCache(dir string, log *zap.Logger) *ImageCache {
	c := &ImageCache{
		dir:   dir,
		files: make(map[string]string),
		log:   log,
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn("images directory not available", zap.String("dir", dir), zap.Error(err))
		return c
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !hasImageExtension(name) {
			continue
		}
		c.files[name] = filepath.Join(dir, e.Name())
	}
	log.Info("image cache loaded", zap.String("dir", dir), zap.Int("count", len(c.files)))
	return c
}

// Has reports whether a referenced image resolves to a cached file.
func (c *ImageCache) Has(filename string) bool {
	return c.Path(filename) != ""
}

// Path resolves an image reference to a file path, or "" when nothing
// matches.
func (c *ImageCache) Path(filename string) string {
	if filename == "" {
		return ""
	}
	key := strings.ToLower(filename)
	if p, ok := c.files[key]; ok {
		return p
	}
	base := strings.TrimSuffix(key, filepath.Ext(key))
	for _, ext := range imageExtensions {
		if p, ok := c.files[base+ext]; ok {
			return p
		}
	}
	// typo tolerance: match on basename prefix/suffix
	for cached, p := range c.files {
		cachedBase := strings.TrimSuffix(cached, filepath.Ext(cached))
		if strings.HasSuffix(cachedBase, base) || strings.HasSuffix(base, cachedBase) {
			return p
		}
	}
	return ""
}

func hasImageExtension(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
