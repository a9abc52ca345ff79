package templates

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"feltworks.io/live-table-go/internal/cv"
)

// DefaultThreshold is applied when a template definition omits one.
const DefaultThreshold = 0.85

// LoadError reports a reference image that could not be read or decoded.
// Callers that treat missing templates as fatal at startup but skippable
// mid-run can detect it with errors.As.
type LoadError struct {
	Name string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("template %q: load %s: %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// TemplateRegistry manages a dynamic collection of templates loaded from YAML files
type TemplateRegistry struct {
	mu         sync.RWMutex
	templates  map[string]cv.Template
	basePath   string      // Base path for template image files
	imageCache *ImageCache // Optional: for caching decoded images
}

// TemplateDefinition represents a template entry in the YAML file
type TemplateDefinition struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
	Preload   bool       `yaml:"preload,omitempty"` // Decode image at load time
}

// RegionDef represents a search region in the YAML file, in logical coordinates
type RegionDef struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// TemplateFile represents the structure of a template YAML file
type TemplateFile struct {
	Templates []TemplateDefinition `yaml:"templates"`
}

// NewTemplateRegistry creates a new template registry
// basePath is the root directory where template image files are stored
func NewTemplateRegistry(basePath string) *TemplateRegistry {
	return &TemplateRegistry{
		templates:  make(map[string]cv.Template),
		basePath:   basePath,
		imageCache: NewImageCache(),
	}
}

// WithoutImageCache disables image caching for this registry
func (tr *TemplateRegistry) WithoutImageCache() *TemplateRegistry {
	tr.imageCache = nil
	return tr
}

// LoadFromFile loads templates from a YAML file. Definitions marked preload
// have their images decoded immediately; a preload failure aborts the load
// with a *LoadError so startup catches bad assets before a session begins.
func (tr *TemplateRegistry) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read template file %s: %w", filePath, err)
	}

	var templateFile TemplateFile
	if err := yaml.Unmarshal(data, &templateFile); err != nil {
		return fmt.Errorf("failed to unmarshal template YAML: %w", err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	for i, def := range templateFile.Templates {
		if def.Name == "" {
			return fmt.Errorf("template %d: name cannot be empty", i+1)
		}
		if def.Path == "" {
			return fmt.Errorf("template %d (%s): path cannot be empty", i+1, def.Name)
		}
		if def.Threshold < 0 || def.Threshold > 1 {
			return fmt.Errorf("template %d (%s): threshold %.3f outside [0,1]", i+1, def.Name, def.Threshold)
		}

		template := cv.Template{
			Name:      def.Name,
			Path:      filepath.Join(tr.basePath, def.Path),
			Threshold: def.Threshold,
		}

		if def.Region != nil {
			region := cv.NewRegion(def.Region.X, def.Region.Y, def.Region.W, def.Region.H)
			if err := region.Validate(); err != nil {
				return fmt.Errorf("template %d (%s): %w", i+1, def.Name, err)
			}
			template.Region = &region
		}

		if template.Threshold == 0 {
			template.Threshold = DefaultThreshold
		}

		tr.templates[def.Name] = template

		if tr.imageCache != nil {
			if err := tr.imageCache.Register(template, def.Preload); err != nil {
				return err
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

		// Only process .yaml and .yml files
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
		// Return first error but note that there were multiple
		return fmt.Errorf("failed to load %d template files (first error): %w", len(loadErrors), loadErrors[0])
	}

	return nil
}

// Get retrieves a template by name
// Returns the template and true if found, or an empty template and false if not found
func (tr *TemplateRegistry) Get(name string) (cv.Template, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	template, ok := tr.templates[name]
	return template, ok
}

// MustGet retrieves a template by name and panics if not found
// Use this only during initialization or when the template is guaranteed to exist
func (tr *TemplateRegistry) MustGet(name string) cv.Template {
	template, ok := tr.Get(name)
	if !ok {
		panic(fmt.Sprintf("template '%s' not found in registry", name))
	}
	return template
}

// GetOrDefault retrieves a template by name, or returns a synthesized template
// pointing at basePath/name.png when the registry has no entry for it
func (tr *TemplateRegistry) GetOrDefault(name string, defaultThreshold float64) cv.Template {
	template, ok := tr.Get(name)
	if !ok {
		return cv.Template{
			Name:      name,
			Path:      filepath.Join(tr.basePath, name+".png"),
			Threshold: defaultThreshold,
		}
	}
	return template
}

// Image returns the decoded reference image for a named template, loading and
// caching it on first use. A missing or corrupt file surfaces as *LoadError.
func (tr *TemplateRegistry) Image(name string) (*image.RGBA, error) {
	tr.mu.RLock()
	template, ok := tr.templates[name]
	cache := tr.imageCache
	tr.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("template %q not registered", name)
	}
	if cache != nil {
		return cache.Image(name)
	}
	return decodeTemplateImage(template.Name, template.Path)
}

// Register adds a template to the registry programmatically
func (tr *TemplateRegistry) Register(template cv.Template) error {
	if template.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.templates[template.Name] = template
	if tr.imageCache != nil {
		if err := tr.imageCache.Register(template, false); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBatch adds multiple templates to the registry
func (tr *TemplateRegistry) RegisterBatch(templates []cv.Template) error {
	for i, template := range templates {
		if template.Name == "" {
			return fmt.Errorf("template %d: name cannot be empty", i)
		}
		if err := tr.Register(template); err != nil {
			return err
		}
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

// List returns all template names in the registry
func (tr *TemplateRegistry) List() []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	names := make([]string, 0, len(tr.templates))
	for name := range tr.templates {
		names = append(names, name)
	}
	return names
}

// Count returns the number of templates in the registry
func (tr *TemplateRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	return len(tr.templates)
}

// Clear removes all templates from the registry
func (tr *TemplateRegistry) Clear() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tr.templates = make(map[string]cv.Template)
	if tr.imageCache != nil {
		tr.imageCache.UnloadAll()
	}
}

// Remove removes a template from the registry
func (tr *TemplateRegistry) Remove(name string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, ok := tr.templates[name]; ok {
		delete(tr.templates, name)
		if tr.imageCache != nil {
			tr.imageCache.Unload(name)
		}
		return true
	}
	return false
}

// ImageCache returns the image cache (if enabled)
func (tr *TemplateRegistry) ImageCache() *ImageCache {
	return tr.imageCache
}

// PreloadAll decodes every template marked for preloading
func (tr *TemplateRegistry) PreloadAll() error {
	if tr.imageCache == nil {
		return fmt.Errorf("image cache not enabled")
	}
	return tr.imageCache.PreloadAll()
}

// UnloadAll drops all cached images
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
