package cv

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"
)

// TemplateProvider resolves template names to their definitions and decoded
// reference images. Implemented by the templates registry.
type TemplateProvider interface {
	Get(name string) (Template, bool)
	Image(name string) (*image.RGBA, error)
}

// Service handles all computer vision operations: capture with short-lived
// frame caching, template lookup, matching, and poll-until-found waits.
type Service struct {
	source   FrameSource
	provider TemplateProvider

	// Frame caching for rapid successive lookups
	cachedFrame   *Frame
	cacheDuration time.Duration

	pollInterval time.Duration

	mu sync.Mutex
}

// NewService creates a new CV service
func NewService(source FrameSource, provider TemplateProvider) *Service {
	return &Service{
		source:        source,
		provider:      provider,
		cacheDuration: 100 * time.Millisecond,
		pollInterval:  500 * time.Millisecond,
	}
}

// NewServiceWithCache creates a CV service with a custom frame cache duration
func NewServiceWithCache(source FrameSource, provider TemplateProvider, cacheDuration time.Duration) *Service {
	s := NewService(source, provider)
	s.cacheDuration = cacheDuration
	return s
}

// WithPollInterval sets the wait-primitive polling interval
func (s *Service) WithPollInterval(interval time.Duration) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollInterval = interval
	return s
}

// CaptureFrame returns the current full-screen frame, reusing a cached one
// when it is younger than the cache duration.
func (s *Service) CaptureFrame(useCache bool) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if useCache && s.cachedFrame != nil {
		if time.Since(s.cachedFrame.At) < s.cacheDuration {
			return s.cachedFrame, nil
		}
	}

	frame, err := s.source.Capture(nil)
	if err != nil {
		return nil, err
	}

	if useCache {
		s.cachedFrame = frame
	}

	return frame, nil
}

// CaptureRegion returns a frame cropped to a logical region.
func (s *Service) CaptureRegion(region Region, useCache bool) (*Frame, error) {
	frame, err := s.CaptureFrame(useCache)
	if err != nil {
		return nil, err
	}
	return CropFrame(frame, region)
}

// InvalidateCache forces the next capture to grab a fresh frame
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedFrame = nil
}

// FindTemplate finds the best match for a registered template in the current
// frame. The template's own threshold and region apply unless overridden by
// options.
func (s *Service) FindTemplate(name string, opts ...Option) (MatchResult, error) {
	img, config, region, err := s.resolve(name, opts)
	if err != nil {
		return MatchResult{}, err
	}

	frame, err := s.CaptureFrame(true)
	if err != nil {
		return MatchResult{}, err
	}

	if region != nil {
		frame, err = CropFrame(frame, *region)
		if err != nil {
			return MatchResult{}, err
		}
	}

	return FindBest(frame, img, config), nil
}

// FindAllTemplates finds every non-overlapping match for a registered
// template in the current frame.
func (s *Service) FindAllTemplates(name string, opts ...Option) ([]MatchResult, error) {
	img, config, region, err := s.resolve(name, opts)
	if err != nil {
		return nil, err
	}

	frame, err := s.CaptureFrame(true)
	if err != nil {
		return nil, err
	}

	if region != nil {
		frame, err = CropFrame(frame, *region)
		if err != nil {
			return nil, err
		}
	}

	return FindAll(frame, img, config), nil
}

// TemplateExists reports whether a template is currently visible
func (s *Service) TemplateExists(name string, opts ...Option) (bool, error) {
	result, err := s.FindTemplate(name, opts...)
	if err != nil {
		return false, err
	}
	return result.Found, nil
}

// WaitForTemplate polls until the template appears or the timeout elapses.
// A timeout returns a zero-value result and no error; errors are reserved
// for capture and template-load failures. Each poll captures a fresh frame.
func (s *Service) WaitForTemplate(ctx context.Context, name string, timeout time.Duration, opts ...Option) (MatchResult, error) {
	deadline := time.Now().Add(timeout)

	for {
		s.InvalidateCache()
		result, err := s.FindTemplate(name, opts...)
		if err != nil {
			return MatchResult{}, err
		}
		if result.Found {
			return result, nil
		}

		if time.Now().After(deadline) {
			return MatchResult{}, nil
		}

		select {
		case <-ctx.Done():
			return MatchResult{}, ctx.Err()
		case <-time.After(s.poll()):
		}
	}
}

// WaitForAnyTemplate polls until any of the named templates appears, checked
// in the order given. Returns the matched name, or an empty name on timeout.
func (s *Service) WaitForAnyTemplate(ctx context.Context, names []string, timeout time.Duration, opts ...Option) (string, MatchResult, error) {
	deadline := time.Now().Add(timeout)

	for {
		s.InvalidateCache()
		for _, name := range names {
			result, err := s.FindTemplate(name, opts...)
			if err != nil {
				return "", MatchResult{}, err
			}
			if result.Found {
				return name, result, nil
			}
		}

		if time.Now().After(deadline) {
			return "", MatchResult{}, nil
		}

		select {
		case <-ctx.Done():
			return "", MatchResult{}, ctx.Err()
		case <-time.After(s.poll()):
		}
	}
}

func (s *Service) poll() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollInterval
}

// resolve looks up a template definition and image and folds options into a
// match configuration.
func (s *Service) resolve(name string, opts []Option) (*image.RGBA, *MatchConfig, *Region, error) {
	var applied findOptions
	for _, opt := range opts {
		opt(&applied)
	}

	tmpl, ok := s.provider.Get(name)
	if !ok {
		return nil, nil, nil, fmt.Errorf("template %q not registered", name)
	}

	img, err := s.provider.Image(name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load template %q: %w", name, err)
	}

	config := DefaultMatchConfig()
	if tmpl.Threshold > 0 {
		config.Threshold = tmpl.Threshold
	}
	if applied.hasThreshold {
		config.Threshold = applied.threshold
	}
	if applied.hasMethod {
		config.Method = applied.method
	}
	if applied.minDistance > 0 {
		config.MinDistance = applied.minDistance
	}
	if applied.maxMatches > 0 {
		config.MaxMatches = applied.maxMatches
	}

	region := tmpl.Region
	if applied.region != nil {
		region = applied.region
	}

	return img, config, region, nil
}
