// Package games holds the per-game behaviors driven by the polling loop.
// Each game implements bot.Behavior against narrow interfaces so tests can
// run the state machines with fakes instead of a live screen.
package games

import (
	"context"
	"math/rand"
	"time"

	"feltworks.io/live-table-go/internal/actions"
	"feltworks.io/live-table-go/internal/bot"
	"feltworks.io/live-table-go/internal/config"
	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
	"feltworks.io/live-table-go/internal/ocr"
)

// Screen is the template-matching surface a behavior sees. *cv.Service
// satisfies it.
type Screen interface {
	FindTemplate(name string, opts ...cv.Option) (cv.MatchResult, error)
	FindAllTemplates(name string, opts ...cv.Option) ([]cv.MatchResult, error)
	TemplateExists(name string, opts ...cv.Option) (bool, error)
	WaitForTemplate(ctx context.Context, name string, timeout time.Duration, opts ...cv.Option) (cv.MatchResult, error)
	WaitForAnyTemplate(ctx context.Context, names []string, timeout time.Duration, opts ...cv.Option) (string, cv.MatchResult, error)
}

// TextReader is the OCR surface a behavior sees. *ocr.Reader satisfies it.
type TextReader interface {
	ReadNumber(label string, region cv.Region, opts ...ocr.ReadOption) (ocr.Reading, error)
	ReadHand(label string, region cv.Region, opts ...ocr.ReadOption) (ocr.Reading, error)
}

// Pointer is the input surface a behavior sees. *actions.Clicker satisfies
// it.
type Pointer interface {
	ClickPoint(x, y int, opts ...actions.ClickOption)
	ClickMatch(match cv.MatchResult, opts ...actions.ClickOption) bool
	ClickRegionRandom(region cv.Region, opts ...actions.ClickOption)
	MoveAway()
	RandomDelay(min, max time.Duration)
	Delay()
}

// Deps bundles everything a behavior needs. Screen, Reader, Pointer, and
// Config are required; the rest default when nil.
type Deps struct {
	Screen  Screen
	Reader  TextReader
	Pointer Pointer
	Config  *config.GameConfig
	Session *bot.Session
	Logger  *logging.Logger

	// Injected for tests; default to the real thing.
	Sleep func(time.Duration)
	Now   func() time.Time
	Rand  *rand.Rand
}

func (d *Deps) normalize(component string) {
	if d.Logger == nil {
		d.Logger = logging.NewLogger(component)
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// base carries the dependencies and the helpers every behavior shares.
// Template names follow the element keys of the game config; grouped
// elements register as "group.member" (e.g. "bet_segments.pachinko").
type base struct {
	deps       Deps
	log        *logging.Logger
	confidence float64
	poll       time.Duration
}

func newBase(deps Deps, component string, fallbackPoll time.Duration) base {
	deps.normalize(component)
	return base{
		deps:       deps,
		log:        deps.Logger,
		confidence: deps.Config.Settings.Confidence,
		poll:       deps.Config.PollInterval(fallbackPoll),
	}
}

func (b *base) sleep(d time.Duration) {
	b.deps.Sleep(d)
}

// configured reports whether an element key appears in the game config,
// as either a flat path or a group.
func (b *base) configured(name string) bool {
	_, ok := b.deps.Config.Elements[name]
	return ok
}

// detect reports whether a configured element is on screen, propagating
// capture errors so the loop can cool down. Unconfigured elements are
// simply absent.
func (b *base) detect(name string) (bool, error) {
	if !b.configured(name) {
		return false, nil
	}
	match, err := b.deps.Screen.FindTemplate(name, cv.WithThreshold(b.confidence))
	if err != nil {
		return false, err
	}
	return match.Found, nil
}

// find locates a configured element, swallowing errors. Used inside step
// handlers where a miss means "try something else", not "abort".
func (b *base) find(name string) (cv.MatchResult, bool) {
	if !b.configured(name) {
		return cv.MatchResult{}, false
	}
	match, err := b.deps.Screen.FindTemplate(name, cv.WithThreshold(b.confidence))
	if err != nil {
		b.log.Debugf("Find %s failed: %v", name, err)
		return cv.MatchResult{}, false
	}
	return match, match.Found
}

// clickElement finds a configured element and clicks it.
func (b *base) clickElement(name string) bool {
	match, ok := b.find(name)
	if !ok {
		return false
	}
	return b.deps.Pointer.ClickMatch(match)
}

// readBalance reads the balance region, returning nil when the region is
// not configured or the read did not parse.
func (b *base) readBalance() *float64 {
	region, ok := b.deps.Config.Region("balance")
	if !ok {
		return nil
	}
	reading, err := b.deps.Reader.ReadNumber("balance", region)
	if err != nil {
		b.log.Debugf("Balance read failed: %v", err)
		return nil
	}
	if !reading.Success {
		return nil
	}
	value := reading.Value.Number
	b.log.Debugf("Balance: $%.2f", value)
	return &value
}

// recordStart reads the opening balance into the session.
func (b *base) recordStart() {
	balance := b.readBalance()
	if balance == nil || b.deps.Session == nil {
		return
	}
	b.deps.Session.SetStartingBalance(*balance)
	b.log.Infof("Starting balance: $%.2f", *balance)
}

// logRound records a completed round with a fresh balance read.
func (b *base) logRound(notes string) {
	if b.deps.Session == nil {
		return
	}
	b.deps.Session.LogRound(b.readBalance(), notes)
}
