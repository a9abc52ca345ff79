package actions

import (
	"math/rand"
	"time"

	"github.com/go-vgo/robotgo"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
)

// Clicker performs mouse actions in logical screen coordinates with
// human-like jitter and randomized delays.
type Clicker struct {
	logger *logging.Logger
	rng    *rand.Rand

	jitterPx int
	delayMin time.Duration
	delayMax time.Duration

	// Injected effects, replaceable in tests
	sleep      func(time.Duration)
	moveClick  func(x, y int)
	moveTo     func(x, y int)
	screenSize func() (int, int)
}

// NewClicker creates a robotgo-backed clicker with default behavior
func NewClicker() *Clicker {
	return &Clicker{
		logger:   logging.NewLogger("actions"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		jitterPx: 5,
		delayMin: 300 * time.Millisecond,
		delayMax: time.Second,
		sleep:    time.Sleep,
		moveClick: func(x, y int) {
			robotgo.MoveClick(x, y, "left", false)
		},
		moveTo: func(x, y int) {
			robotgo.MoveSmooth(x, y)
		},
		screenSize: robotgo.GetScreenSize,
	}
}

// WithDelayBounds sets the bounds used for post-click and between-click delays
func (c *Clicker) WithDelayBounds(min, max time.Duration) *Clicker {
	if min >= 0 && max >= min {
		c.delayMin = min
		c.delayMax = max
	}
	return c
}

// WithJitterRadius sets the maximum click offset in each direction
func (c *Clicker) WithJitterRadius(px int) *Clicker {
	if px >= 0 {
		c.jitterPx = px
	}
	return c
}

// WithLogger sets the logger
func (c *Clicker) WithLogger(logger *logging.Logger) *Clicker {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// ClickOption adjusts a single click
type ClickOption func(*clickOptions)

type clickOptions struct {
	jitter    bool
	postDelay bool
}

// WithoutJitter clicks the exact coordinates
func WithoutJitter() ClickOption {
	return func(o *clickOptions) {
		o.jitter = false
	}
}

// WithPostDelay sleeps a random duration within the delay bounds after
// the click completes
func WithPostDelay() ClickOption {
	return func(o *clickOptions) {
		o.postDelay = true
	}
}

func (c *Clicker) fold(opts []ClickOption) clickOptions {
	folded := clickOptions{jitter: true}
	for _, opt := range opts {
		opt(&folded)
	}
	return folded
}

// RandomDelay sleeps for a uniformly random duration in [min, max]
func (c *Clicker) RandomDelay(min, max time.Duration) {
	delay := min
	if max > min {
		delay += time.Duration(c.rng.Int63n(int64(max - min + 1)))
	}
	c.logger.Debugf("Delay: %v", delay.Round(10*time.Millisecond))
	c.sleep(delay)
}

// Delay sleeps for a random duration within the configured bounds
func (c *Clicker) Delay() {
	c.RandomDelay(c.delayMin, c.delayMax)
}

// AddJitter offsets coordinates by up to the jitter radius in each direction
func (c *Clicker) AddJitter(x, y int) (int, int) {
	if c.jitterPx == 0 {
		return x, y
	}
	jx := x + c.rng.Intn(2*c.jitterPx+1) - c.jitterPx
	jy := y + c.rng.Intn(2*c.jitterPx+1) - c.jitterPx
	return jx, jy
}

// ClickPoint clicks a logical screen coordinate
func (c *Clicker) ClickPoint(x, y int, opts ...ClickOption) {
	folded := c.fold(opts)

	if folded.jitter {
		x, y = c.AddJitter(x, y)
	}

	c.logger.Infof("Click at (%d, %d)", x, y)
	c.moveClick(x, y)

	if folded.postDelay {
		c.Delay()
	}
}

// ClickMatch clicks the location of a template match. Returns false when
// the match was not found.
func (c *Clicker) ClickMatch(match cv.MatchResult, opts ...ClickOption) bool {
	if !match.Found {
		return false
	}
	c.ClickPoint(match.Location.X, match.Location.Y, opts...)
	return true
}

// ClickRegionRandom clicks a uniformly random point inside a region.
// Useful for pick-style bonus rounds where any cell is as good as another.
func (c *Clicker) ClickRegionRandom(region cv.Region, opts ...ClickOption) {
	x := region.X + c.rng.Intn(region.W)
	y := region.Y + c.rng.Intn(region.H)
	c.logger.Infof("Random click in region %s at (%d, %d)", region, x, y)
	c.ClickPoint(x, y, append(opts, WithoutJitter())...)
}

// ClickAll clicks every point in shuffled order with a random delay
// between clicks (none after the last). Returns the number of clicks.
func (c *Clicker) ClickAll(points []cv.Point, opts ...ClickOption) int {
	if len(points) == 0 {
		return 0
	}

	shuffled := make([]cv.Point, len(points))
	copy(shuffled, points)
	c.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for i, p := range shuffled {
		c.ClickPoint(p.X, p.Y, opts...)
		if i < len(shuffled)-1 {
			c.Delay()
		}
	}

	c.logger.Infof("Clicked %d points", len(shuffled))
	return len(shuffled)
}

// MoveAway parks the mouse near the bottom-right corner so it does not
// hover over game UI between actions.
func (c *Clicker) MoveAway() {
	w, h := c.screenSize()
	x := w - 50 + c.rng.Intn(21) - 10
	y := h - 50 + c.rng.Intn(21) - 10
	c.moveTo(x, y)
}
