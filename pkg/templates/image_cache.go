package templates

import (
	"fmt"
	"sync"

	"jordanella.com/imagecenter/internal/cv"
)

// CachedTemplate pairs a catalog entry with its decoded picture
type CachedTemplate struct {
	cv.Template
	image       *cv.Image
	mu          sync.RWMutex // Protects image field
	preload     bool         // Whether to preload image at startup
	unloadAfter bool         // Whether to unload after use
}

// ImageCache manages template image loading and caching
type ImageCache struct {
	templates map[string]*CachedTemplate
	mu        sync.RWMutex
	stats     CacheStats
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits        int64 // Cache hits
	Misses      int64 // Cache misses (had to load)
	Loads       int64 // Total load operations
	Unloads     int64 // Total unload operations
	PreloadFail int64 // Failed preloads
}

// NewImageCache creates a new image cache
func NewImageCache() *ImageCache {
	return &ImageCache{
		templates: make(map[string]*CachedTemplate),
	}
}

// Register adds a template to the cache. A failed preload still registers
// the template so it can be loaded on demand.
func (ic *ImageCache) Register(template cv.Template, preload, unloadAfter bool) error {
	cached := &CachedTemplate{
		Template:    template,
		preload:     preload,
		unloadAfter: unloadAfter,
	}

	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.templates[template.Name] = cached

	if preload {
		if err := cached.load(); err != nil {
			ic.stats.PreloadFail++
			return fmt.Errorf("failed to preload template %s: %w", template.Name, err)
		}
		ic.stats.Loads++
	}
	return nil
}

// Get retrieves a template and its image, loading if necessary
func (ic *ImageCache) Get(name string) (*cv.Image, cv.Template, error) {
	ic.mu.RLock()
	cached, ok := ic.templates[name]
	ic.mu.RUnlock()

	if !ok {
		return nil, cv.Template{}, &cv.ImageLoadError{Path: name, Err: cv.ErrTemplateNotExist}
	}

	img, hit, err := cached.getOrLoad()
	if err != nil {
		return nil, cv.Template{}, err
	}

	ic.mu.Lock()
	if hit {
		ic.stats.Hits++
	} else {
		ic.stats.Misses++
		ic.stats.Loads++
	}
	ic.mu.Unlock()

	return img, cached.Template, nil
}

// Release unloads a template image if unloadAfter is set
func (ic *ImageCache) Release(name string) error {
	ic.mu.RLock()
	cached, ok := ic.templates[name]
	ic.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template '%s' not found in cache", name)
	}

	if cached.unloadAfter && cached.unload() {
		ic.mu.Lock()
		ic.stats.Unloads++
		ic.mu.Unlock()
	}

	return nil
}

// Forget drops a template and its image from the cache
func (ic *ImageCache) Forget(name string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.templates, name)
}

// PreloadAll loads all templates marked for preloading
func (ic *ImageCache) PreloadAll() error {
	ic.mu.RLock()
	templates := make([]*CachedTemplate, 0, len(ic.templates))
	for _, t := range ic.templates {
		if t.preload {
			templates = append(templates, t)
		}
	}
	ic.mu.RUnlock()

	var errs []error
	for _, cached := range templates {
		if cached.IsLoaded() {
			continue
		}
		err := cached.load()

		ic.mu.Lock()
		if err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", cached.Name, err))
			ic.stats.PreloadFail++
		} else {
			ic.stats.Loads++
		}
		ic.mu.Unlock()
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to preload %d templates: %w", len(errs), errs[0])
	}

	return nil
}

// UnloadAll unloads all cached images
func (ic *ImageCache) UnloadAll() {
	ic.mu.RLock()
	templates := make([]*CachedTemplate, 0, len(ic.templates))
	for _, t := range ic.templates {
		templates = append(templates, t)
	}
	ic.mu.RUnlock()

	for _, cached := range templates {
		if cached.unload() {
			ic.mu.Lock()
			ic.stats.Unloads++
			ic.mu.Unlock()
		}
	}
}

// Stats returns cache statistics
func (ic *ImageCache) Stats() CacheStats {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.stats
}

// getOrLoad returns the cached image or loads it; hit reports whether it
// was already in memory.
func (ct *CachedTemplate) getOrLoad() (img *cv.Image, hit bool, err error) {
	ct.mu.RLock()
	if ct.image != nil {
		defer ct.mu.RUnlock()
		return ct.image, true, nil
	}
	ct.mu.RUnlock()

	ct.mu.Lock()
	defer ct.mu.Unlock()

	// Double-check after acquiring write lock
	if ct.image != nil {
		return ct.image, true, nil
	}

	img, err = loadTemplateImage(ct.Template)
	if err != nil {
		return nil, false, err
	}
	ct.image = img
	return img, false, nil
}

func (ct *CachedTemplate) load() error {
	_, _, err := ct.getOrLoad()
	return err
}

// unload reports whether an image was dropped
func (ct *CachedTemplate) unload() bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.image == nil {
		return false
	}
	ct.image = nil
	return true
}

// IsLoaded returns true if the image is currently in memory
func (ct *CachedTemplate) IsLoaded() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.image != nil
}

// loadTemplateImage completes a missing extension and decodes the picture.
func loadTemplateImage(t cv.Template) (*cv.Image, error) {
	path, err := cv.ResolvePath(t.Path)
	if err != nil {
		return nil, err
	}
	return cv.Load(path)
}
