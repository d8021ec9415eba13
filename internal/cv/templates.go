package cv

// Template is a named reference picture.
type Template struct {
	Name string
	Path string
	Rate float64 // 0 means the configured default rate
}

// TemplateSource resolves template names to pictures. pkg/templates
// provides the YAML-backed implementation.
type TemplateSource interface {
	Get(name string) (Template, bool)
	LoadImage(name string) (*Image, error)
}
