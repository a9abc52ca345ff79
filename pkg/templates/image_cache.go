package templates

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sync"

	"feltworks.io/live-table-go/internal/cv"
)

// cachedImage holds one template's decoded image and loads it lazily.
type cachedImage struct {
	name    string
	path    string
	preload bool

	mu  sync.RWMutex // protects img
	img *image.RGBA
}

// ImageCache keeps decoded template images in memory so repeated matches do
// not hit the disk. Entries are registered up front and decoded on first use
// unless marked for preload.
type ImageCache struct {
	mu      sync.RWMutex
	entries map[string]*cachedImage
	stats   CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits        int64 // Image already in memory
	Misses      int64 // Had to decode from disk
	Loads       int64 // Total decode operations
	Unloads     int64 // Total unload operations
	PreloadFail int64 // Failed preloads
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{
		entries: make(map[string]*cachedImage),
	}
}

// Register adds a template to the cache. With preload set the image is
// decoded immediately and a failure is returned as *LoadError.
func (ic *ImageCache) Register(template cv.Template, preload bool) error {
	ic.mu.Lock()
	entry, ok := ic.entries[template.Name]
	if !ok {
		entry = &cachedImage{
			name:    template.Name,
			path:    template.Path,
			preload: preload,
		}
		ic.entries[template.Name] = entry
	} else {
		entry.path = template.Path
		entry.preload = entry.preload || preload
	}
	ic.mu.Unlock()

	if preload {
		if err := entry.load(); err != nil {
			ic.bump(func(s *CacheStats) { s.PreloadFail++ })
			return err
		}
		ic.bump(func(s *CacheStats) { s.Loads++ })
	}
	return nil
}

// Image returns the decoded image for a registered template, decoding it on
// first use. Missing or corrupt files surface as *LoadError.
func (ic *ImageCache) Image(name string) (*image.RGBA, error) {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("template %q not registered in image cache", name)
	}

	if entry.loaded() {
		ic.bump(func(s *CacheStats) { s.Hits++ })
		return entry.getOrLoad()
	}

	img, err := entry.getOrLoad()
	if err != nil {
		return nil, err
	}
	ic.bump(func(s *CacheStats) { s.Misses++; s.Loads++ })
	return img, nil
}

// Unload drops one entry's decoded image. The entry stays registered and will
// reload on next use.
func (ic *ImageCache) Unload(name string) {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()

	if ok && entry.unload() {
		ic.bump(func(s *CacheStats) { s.Unloads++ })
	}
}

// PreloadAll decodes every entry marked for preloading
func (ic *ImageCache) PreloadAll() error {
	ic.mu.RLock()
	pending := make([]*cachedImage, 0, len(ic.entries))
	for _, entry := range ic.entries {
		if entry.preload {
			pending = append(pending, entry)
		}
	}
	ic.mu.RUnlock()

	var firstErr error
	failed := 0
	for _, entry := range pending {
		if entry.loaded() {
			continue
		}
		if err := entry.load(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			ic.bump(func(s *CacheStats) { s.PreloadFail++ })
			continue
		}
		ic.bump(func(s *CacheStats) { s.Loads++ })
	}

	if firstErr != nil {
		return fmt.Errorf("failed to preload %d templates: %w", failed, firstErr)
	}
	return nil
}

// UnloadAll drops every decoded image while keeping the entries registered
func (ic *ImageCache) UnloadAll() {
	ic.mu.RLock()
	entries := make([]*cachedImage, 0, len(ic.entries))
	for _, entry := range ic.entries {
		entries = append(entries, entry)
	}
	ic.mu.RUnlock()

	for _, entry := range entries {
		if entry.unload() {
			ic.bump(func(s *CacheStats) { s.Unloads++ })
		}
	}
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.stats
}

// Loaded reports whether a template's image is currently decoded in memory
func (ic *ImageCache) Loaded(name string) bool {
	ic.mu.RLock()
	entry, ok := ic.entries[name]
	ic.mu.RUnlock()
	return ok && entry.loaded()
}

func (ic *ImageCache) bump(update func(*CacheStats)) {
	ic.mu.Lock()
	update(&ic.stats)
	ic.mu.Unlock()
}

// cachedImage methods

func (ci *cachedImage) loaded() bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return ci.img != nil
}

// getOrLoad returns the cached image or decodes it if not cached
func (ci *cachedImage) getOrLoad() (*image.RGBA, error) {
	// Fast path: image already decoded
	ci.mu.RLock()
	if ci.img != nil {
		defer ci.mu.RUnlock()
		return ci.img, nil
	}
	ci.mu.RUnlock()

	// Slow path: decode under the write lock
	ci.mu.Lock()
	defer ci.mu.Unlock()

	// Double-check after acquiring write lock
	if ci.img != nil {
		return ci.img, nil
	}

	img, err := decodeTemplateImage(ci.name, ci.path)
	if err != nil {
		return nil, err
	}
	ci.img = img
	return ci.img, nil
}

// load decodes the image eagerly (thread-safe)
func (ci *cachedImage) load() error {
	_, err := ci.getOrLoad()
	return err
}

// unload releases the decoded image and reports whether one was held
func (ci *cachedImage) unload() bool {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	if ci.img == nil {
		return false
	}
	ci.img = nil
	return true
}

// decodeTemplateImage reads and decodes a PNG reference image, normalizing it
// to an origin-based RGBA so downstream matching can index pixels directly.
func decodeTemplateImage(name, path string) (*image.RGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Name: name, Path: path, Err: err}
	}
	defer file.Close()

	img, err := png.Decode(file)
	if err != nil {
		return nil, &LoadError{Name: name, Path: path, Err: fmt.Errorf("decode: %w", err)}
	}

	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba, nil
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba, nil
}
