package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
	"jordanella.com/imagecenter/internal/cv"
	"jordanella.com/imagecenter/internal/logging"
)

// TemplateRegistry maps template names from YAML catalogs to picture files.
// It implements cv.TemplateSource.
type TemplateRegistry struct {
	mu         sync.RWMutex
	templates  map[string]cv.Template
	basePath   string      // Base path for template image files
	imageCache *ImageCache // Optional: for caching loaded images
	logger     *logging.Logger
}

// TemplateDefinition represents a template in the YAML file
type TemplateDefinition struct {
	Name        string  `yaml:"name"`
	Path        string  `yaml:"path"`
	Rate        float64 `yaml:"rate,omitempty"`         // 0 keeps the configured default
	Preload     bool    `yaml:"preload,omitempty"`      // Load image at startup
	UnloadAfter bool    `yaml:"unload_after,omitempty"` // Drop the image after each use
}

// TemplateFile represents the structure of a template YAML file
type TemplateFile struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// NewTemplateRegistry creates a new template registry
// basePath is the root directory relative template paths are joined to
func NewTemplateRegistry(basePath string) *TemplateRegistry {
	return &TemplateRegistry{
		templates:  make(map[string]cv.Template),
		basePath:   basePath,
		imageCache: NewImageCache(),
		logger:     logging.NewLogger("templates"),
	}
}

// WithoutImageCache disables image caching for this registry
func (tr *TemplateRegistry) WithoutImageCache() *TemplateRegistry {
	tr.imageCache = nil
	return tr
}

// WithLogger sets the logger used for preload warnings
func (tr *TemplateRegistry) WithLogger(l *logging.Logger) *TemplateRegistry {
	tr.logger = l
	return tr
}

// Load reads a single catalog file or every catalog in a directory.
func (tr *TemplateRegistry) Load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read template catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return tr.LoadFromDirectory(path)
	}
	return tr.LoadFromFile(path)
}

// LoadFromFile loads templates from a YAML file
func (tr *TemplateRegistry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var templateFile TemplateFile
	if err := yaml.Unmarshal(data, &templateFile); err != nil {
		return fmt.Errorf("failed to unmarshal template YAML: %w", err)
	}

	// validate the whole file before registering anything from it
	for i, def := range templateFile.Templates {
		if def.Name == "" {
			return fmt.Errorf("template %d: name cannot be empty", i+1)
		}
		if def.Path == "" {
			return fmt.Errorf("template %d (%s): path cannot be empty", i+1, def.Name)
		}
		if !(def.Rate >= 0 && def.Rate <= 1) {
			return fmt.Errorf("template %d (%s): rate %g outside [0,1]", i+1, def.Name, def.Rate)
		}
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	for _, def := range templateFile.Templates {
		template := cv.Template{
			Name: def.Name,
			Path: tr.resolve(def.Path),
			Rate: def.Rate,
		}
		tr.templates[def.Name] = template

		if tr.imageCache != nil {
			if err := tr.imageCache.Register(template, def.Preload, def.UnloadAfter); err != nil {
				// still loadable on demand
				tr.logger.WarnWithContext("template preload failed", map[string]interface{}{
					"template": def.Name,
					"error":    err.Error(),
				})
			}
		}
	}

	return nil
}

// LoadFromDirectory loads all YAML files from a directory
func (tr *TemplateRegistry) LoadFromDirectory(dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("failed to read template directory %s: %w", dirPath, err)
	}

	var loadErrors []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		fullPath := filepath.Join(dirPath, entry.Name())
		if err := tr.LoadFromFile(fullPath); err != nil {
			loadErrors = append(loadErrors, fmt.Errorf("file %s: %w", entry.Name(), err))
		}
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d template files (first error): %w", len(loadErrors), loadErrors[0])
	}

	return nil
}

func (tr *TemplateRegistry) resolve(path string) string {
	if filepath.IsAbs(path) || tr.basePath == "" {
		return path
	}
	return filepath.Join(tr.basePath, path)
}

// Get retrieves a template by name
// Returns the template and true if found, or an empty template and false if not found
func (tr *TemplateRegistry) Get(name string) (cv.Template, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	template, ok := tr.templates[name]
	return template, ok
}

// LoadImage returns the picture for a registered template, through the
// cache when it is enabled.
func (tr *TemplateRegistry) LoadImage(name string) (*cv.Image, error) {
	template, ok := tr.Get(name)
	if !ok {
		return nil, &cv.ImageLoadError{Path: name, Err: cv.ErrTemplateNotExist}
	}

	if tr.imageCache == nil {
		return loadTemplateImage(template)
	}

	img, _, err := tr.imageCache.Get(name)
	if err != nil {
		return nil, err
	}
	if err := tr.imageCache.Release(name); err != nil {
		return nil, err
	}
	return img, nil
}

// Register adds a template to the registry programmatically
func (tr *TemplateRegistry) Register(template cv.Template) error {
	if template.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if !(template.Rate >= 0 && template.Rate <= 1) {
		return fmt.Errorf("template %s: rate %g outside [0,1]", template.Name, template.Rate)
	}
	template.Path = tr.resolve(template.Path)

	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.templates[template.Name] = template
	if tr.imageCache != nil {
		return tr.imageCache.Register(template, false, false)
	}
	return nil
}

// Has checks if a template exists in the registry
func (tr *TemplateRegistry) Has(name string) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	_, ok := tr.templates[name]
	return ok
}

// List returns all template names in the registry, sorted
func (tr *TemplateRegistry) List() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	names := make([]string, 0, len(tr.templates))
	for name := range tr.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of templates in the registry
func (tr *TemplateRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	return len(tr.templates)
}

// Remove removes a template from the registry
func (tr *TemplateRegistry) Remove(name string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := tr.templates[name]; !ok {
		return false
	}
	delete(tr.templates, name)
	if tr.imageCache != nil {
		tr.imageCache.Forget(name)
	}
	return true
}

// PreloadAll preloads all templates marked for preloading
func (tr *TemplateRegistry) PreloadAll() error {
	if tr.imageCache == nil {
		return fmt.Errorf("image cache not enabled")
	}
	return tr.imageCache.PreloadAll()
}

// UnloadAll unloads all cached images
func (tr *TemplateRegistry) UnloadAll() {
	if tr.imageCache != nil {
		tr.imageCache.UnloadAll()
	}
}

// CacheStats returns image cache statistics
func (tr *TemplateRegistry) CacheStats() CacheStats {
	if tr.imageCache == nil {
		return CacheStats{}
	}
	return tr.imageCache.Stats()
}
