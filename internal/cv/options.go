package cv

// Find operation options
type Option func(*findOptions)

type findOptions struct {
	threshold    float64
	hasThreshold bool
	region       *Region
	minDistance  int
	method       MatchMethod
	hasMethod    bool
	maxMatches   int
}

// WithThreshold overrides the template's own confidence threshold
func WithThreshold(t float64) Option {
	return func(opts *findOptions) {
		opts.threshold = t
		opts.hasThreshold = true
	}
}

// WithRegion overrides the logical region the search crops to
func WithRegion(r Region) Option {
	return func(opts *findOptions) {
		opts.region = &r
	}
}

// WithMinDistance sets the FindAll exclusion radius in logical pixels
func WithMinDistance(d int) Option {
	return func(opts *findOptions) {
		opts.minDistance = d
	}
}

// WithMethod selects the scoring algorithm
func WithMethod(m MatchMethod) Option {
	return func(opts *findOptions) {
		opts.method = m
		opts.hasMethod = true
	}
}

// WithMaxMatches caps the number of FindAll results
func WithMaxMatches(n int) Option {
	return func(opts *findOptions) {
		opts.maxMatches = n
	}
}
