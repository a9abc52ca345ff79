package actions

import (
	"math/rand"
	"testing"
	"time"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/logging"
)

type clickRecorder struct {
	clicks []cv.Point
	moves  []cv.Point
	sleeps []time.Duration
}

// newTestClicker returns a clicker with all effects captured and a
// deterministic random source.
func newTestClicker() (*Clicker, *clickRecorder) {
	rec := &clickRecorder{}
	c := &Clicker{
		logger:   logging.NewLogger("actions-test").SetMinLevel(logging.LogLevelFatal),
		rng:      rand.New(rand.NewSource(1)),
		jitterPx: 5,
		delayMin: 10 * time.Millisecond,
		delayMax: 20 * time.Millisecond,
		sleep: func(d time.Duration) {
			rec.sleeps = append(rec.sleeps, d)
		},
		moveClick: func(x, y int) {
			rec.clicks = append(rec.clicks, cv.Point{X: x, Y: y})
		},
		moveTo: func(x, y int) {
			rec.moves = append(rec.moves, cv.Point{X: x, Y: y})
		},
		screenSize: func() (int, int) {
			return 1920, 1080
		},
	}
	return c, rec
}

func TestClickPointJitterStaysWithinRadius(t *testing.T) {
	c, rec := newTestClicker()

	for i := 0; i < 50; i++ {
		c.ClickPoint(100, 200)
	}

	if len(rec.clicks) != 50 {
		t.Fatalf("Expected 50 clicks, got %d", len(rec.clicks))
	}

	exact := 0
	for _, p := range rec.clicks {
		if p.X < 95 || p.X > 105 || p.Y < 195 || p.Y > 205 {
			t.Fatalf("Click (%d,%d) outside jitter radius of (100,200)", p.X, p.Y)
		}
		if p.X == 100 && p.Y == 200 {
			exact++
		}
	}
	if exact == 50 {
		t.Error("Expected jitter to move at least one click off the exact point")
	}
}

func TestClickPointWithoutJitter(t *testing.T) {
	c, rec := newTestClicker()

	c.ClickPoint(640, 360, WithoutJitter())

	if len(rec.clicks) != 1 {
		t.Fatalf("Expected 1 click, got %d", len(rec.clicks))
	}
	if rec.clicks[0] != (cv.Point{X: 640, Y: 360}) {
		t.Errorf("Expected exact click at (640,360), got %+v", rec.clicks[0])
	}
	if len(rec.sleeps) != 0 {
		t.Errorf("Expected no delay without WithPostDelay, got %d sleeps", len(rec.sleeps))
	}
}

func TestClickPointPostDelayWithinBounds(t *testing.T) {
	c, rec := newTestClicker()

	c.ClickPoint(10, 10, WithPostDelay())

	if len(rec.sleeps) != 1 {
		t.Fatalf("Expected 1 sleep, got %d", len(rec.sleeps))
	}
	if rec.sleeps[0] < 10*time.Millisecond || rec.sleeps[0] > 20*time.Millisecond {
		t.Errorf("Expected delay in [10ms,20ms], got %v", rec.sleeps[0])
	}
}

func TestClickMatch(t *testing.T) {
	c, rec := newTestClicker()

	miss := cv.MatchResult{Found: false}
	if c.ClickMatch(miss) {
		t.Error("Expected ClickMatch to return false for a miss")
	}
	if len(rec.clicks) != 0 {
		t.Errorf("Expected no clicks for a miss, got %d", len(rec.clicks))
	}

	hit := cv.MatchResult{Found: true, Location: cv.Point{X: 300, Y: 400}, Confidence: 0.95}
	if !c.ClickMatch(hit, WithoutJitter()) {
		t.Fatal("Expected ClickMatch to return true for a hit")
	}
	if rec.clicks[0] != (cv.Point{X: 300, Y: 400}) {
		t.Errorf("Expected click at match location, got %+v", rec.clicks[0])
	}
}

func TestClickRegionRandomStaysInside(t *testing.T) {
	c, rec := newTestClicker()
	region := cv.NewRegion(50, 80, 100, 60)

	for i := 0; i < 100; i++ {
		c.ClickRegionRandom(region)
	}

	// Region edges are exclusive: x+w and y+h are already outside.
	for _, p := range rec.clicks {
		if !region.Contains(p) {
			t.Fatalf("Random click (%d,%d) outside region %s", p.X, p.Y, region)
		}
	}
}

func TestClickAllClicksEveryPointOnce(t *testing.T) {
	c, rec := newTestClicker()

	points := []cv.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}
	n := c.ClickAll(points, WithoutJitter())

	if n != 4 {
		t.Fatalf("Expected 4 clicks reported, got %d", n)
	}
	if len(rec.clicks) != 4 {
		t.Fatalf("Expected 4 clicks recorded, got %d", len(rec.clicks))
	}

	seen := map[cv.Point]bool{}
	for _, p := range rec.clicks {
		seen[p] = true
	}
	for _, p := range points {
		if !seen[p] {
			t.Errorf("Point %+v was never clicked", p)
		}
	}

	// Delay between clicks but not after the last
	if len(rec.sleeps) != 3 {
		t.Errorf("Expected 3 between-click delays, got %d", len(rec.sleeps))
	}

	// Input order preserved
	if points[0] != (cv.Point{X: 1, Y: 1}) || points[3] != (cv.Point{X: 4, Y: 4}) {
		t.Error("ClickAll mutated the input slice")
	}
}

func TestClickAllEmpty(t *testing.T) {
	c, rec := newTestClicker()

	if n := c.ClickAll(nil); n != 0 {
		t.Errorf("Expected 0 clicks for empty input, got %d", n)
	}
	if len(rec.clicks) != 0 {
		t.Errorf("Expected no clicks, got %d", len(rec.clicks))
	}
}

func TestMoveAwayParksBottomRight(t *testing.T) {
	c, rec := newTestClicker()

	c.MoveAway()

	if len(rec.moves) != 1 {
		t.Fatalf("Expected 1 move, got %d", len(rec.moves))
	}
	p := rec.moves[0]
	if p.X < 1920-60 || p.X > 1920-40 || p.Y < 1080-60 || p.Y > 1080-40 {
		t.Errorf("Expected park position near bottom-right, got (%d,%d)", p.X, p.Y)
	}
	if len(rec.clicks) != 0 {
		t.Error("MoveAway must not click")
	}
}

func TestRandomDelayBounds(t *testing.T) {
	c, rec := newTestClicker()

	for i := 0; i < 20; i++ {
		c.RandomDelay(5*time.Millisecond, 9*time.Millisecond)
	}

	for _, d := range rec.sleeps {
		if d < 5*time.Millisecond || d > 9*time.Millisecond {
			t.Fatalf("Delay %v outside [5ms,9ms]", d)
		}
	}
}

func TestRandomDelayEqualBounds(t *testing.T) {
	c, rec := newTestClicker()

	c.RandomDelay(7*time.Millisecond, 7*time.Millisecond)

	if len(rec.sleeps) != 1 || rec.sleeps[0] != 7*time.Millisecond {
		t.Fatalf("Expected exactly 7ms, got %v", rec.sleeps)
	}
}
