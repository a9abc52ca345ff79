package cv

// Template describes a named reference image: where it lives on disk, the
// confidence required to accept a match, and optionally the logical region
// it is expected inside. Templates are loaded once and immutable afterwards.
type Template struct {
	Name      string
	Path      string
	Threshold float64
	Region    *Region
}

// Builder methods

// InRegion sets the logical region the template is searched in
func (t Template) InRegion(x, y, w, h int) Template {
	region := NewRegion(x, y, w, h)
	t.Region = &region
	return t
}

// WithThreshold sets the matching threshold
func (t Template) WithThreshold(threshold float64) Template {
	t.Threshold = threshold
	return t
}
