package games

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"feltworks.io/live-table-go/internal/actions"
	"feltworks.io/live-table-go/internal/bot"
	"feltworks.io/live-table-go/internal/config"
	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
	"feltworks.io/live-table-go/internal/ocr"
)

// fakeScreen answers template lookups from a visibility map and records
// which templates were asked for.
type fakeScreen struct {
	mu      sync.Mutex
	visible map[string]bool
	all     map[string][]cv.MatchResult
	err     error
	finds   []string
}

func (s *fakeScreen) match(name string) (cv.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds = append(s.finds, name)
	if s.err != nil {
		return cv.MatchResult{}, s.err
	}
	if s.visible[name] {
		return cv.MatchResult{Found: true, Location: cv.Point{X: 100, Y: 200}, Confidence: 0.95}, nil
	}
	return cv.MatchResult{}, nil
}

func (s *fakeScreen) FindTemplate(name string, opts ...cv.Option) (cv.MatchResult, error) {
	return s.match(name)
}

func (s *fakeScreen) FindAllTemplates(name string, opts ...cv.Option) ([]cv.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all[name], s.err
}

func (s *fakeScreen) TemplateExists(name string, opts ...cv.Option) (bool, error) {
	match, err := s.match(name)
	return match.Found, err
}

func (s *fakeScreen) WaitForTemplate(ctx context.Context, name string, timeout time.Duration, opts ...cv.Option) (cv.MatchResult, error) {
	return s.match(name)
}

func (s *fakeScreen) WaitForAnyTemplate(ctx context.Context, names []string, timeout time.Duration, opts ...cv.Option) (string, cv.MatchResult, error) {
	for _, name := range names {
		match, err := s.match(name)
		if err != nil {
			return "", cv.MatchResult{}, err
		}
		if match.Found {
			return name, match, nil
		}
	}
	return "", cv.MatchResult{}, nil
}

func (s *fakeScreen) findCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, found := range s.finds {
		if found == name {
			count++
		}
	}
	return count
}

// fakeReader serves scripted readings by label. Labels missing from both
// maps read as unparseable.
type fakeReader struct {
	numbers map[string]float64
	hands   map[string]ocr.HandTotal
}

func (r *fakeReader) ReadNumber(label string, region cv.Region, opts ...ocr.ReadOption) (ocr.Reading, error) {
	if value, ok := r.numbers[label]; ok {
		return ocr.Reading{
			Label:   label,
			Success: true,
			Value:   ocr.ParsedValue{Kind: ocr.KindNumber, Number: value},
		}, nil
	}
	return ocr.Reading{Label: label}, nil
}

func (r *fakeReader) ReadHand(label string, region cv.Region, opts ...ocr.ReadOption) (ocr.Reading, error) {
	if hand, ok := r.hands[label]; ok {
		return ocr.Reading{
			Label:   label,
			Success: true,
			Value:   ocr.ParsedValue{Kind: ocr.KindHand, Hand: hand},
		}, nil
	}
	return ocr.Reading{Label: label}, nil
}

// fakePointer records every click without touching the real pointer.
type fakePointer struct {
	points       []cv.Point
	matches      []cv.MatchResult
	regionClicks []cv.Region
	movedAway    int
}

func (p *fakePointer) ClickPoint(x, y int, opts ...actions.ClickOption) {
	p.points = append(p.points, cv.Point{X: x, Y: y})
}

func (p *fakePointer) ClickMatch(match cv.MatchResult, opts ...actions.ClickOption) bool {
	p.matches = append(p.matches, match)
	return true
}

func (p *fakePointer) ClickRegionRandom(region cv.Region, opts ...actions.ClickOption) {
	p.regionClicks = append(p.regionClicks, region)
}

func (p *fakePointer) MoveAway()                          { p.movedAway++ }
func (p *fakePointer) RandomDelay(min, max time.Duration) {}
func (p *fakePointer) Delay()                             {}

func (p *fakePointer) clicks() int {
	return len(p.points) + len(p.matches) + len(p.regionClicks)
}

func quietLogger() *logging.Logger {
	return logging.NewLogger("test").SetMinLevel(logging.LogLevelFatal)
}

// testDeps wires the fakes with deterministic time and randomness.
func testDeps(cfg *config.GameConfig, screen *fakeScreen, reader *fakeReader, pointer *fakePointer) Deps {
	return Deps{
		Screen:  screen,
		Reader:  reader,
		Pointer: pointer,
		Config:  cfg,
		Session: bot.NewSession(cfg.Game.Name, 0),
		Logger:  quietLogger(),
		Sleep:   func(time.Duration) {},
		Now:     time.Now,
		Rand:    rand.New(rand.NewSource(1)),
	}
}
