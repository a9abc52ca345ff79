package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/corona10/goimagehash"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/events"
	"feltworks.io/live-table-go/internal/logging"
)

// FrozenCallback is called when the screen has not changed for the
// configured number of consecutive checks.
type FrozenCallback func(consecutive int, distance int)

// Watchdog watches for a frozen screen: every interval it captures a frame,
// computes a perception hash, and compares it with the previous one. A live
// table always animates (cards, wheel, timers), so consecutive
// near-identical frames mean the stream stalled or the window lost focus.
type Watchdog struct {
	source cv.FrameSource
	logger *logging.Logger
	bus    events.EventBus

	interval    time.Duration
	maxDistance int // hash distance at or below which frames count as identical
	freezeAfter int // consecutive identical checks before firing

	onFrozen FrozenCallback

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	lastHash    *goimagehash.ImageHash
	consecutive int
	running     bool
}

// NewWatchdog creates a watchdog over a frame source.
func NewWatchdog(source cv.FrameSource) *Watchdog {
	return &Watchdog{
		source:      source,
		logger:      logging.NewLogger("watchdog"),
		interval:    2 * time.Second,
		maxDistance: 2,
		freezeAfter: 5,
	}
}

// WithInterval sets the check interval
func (w *Watchdog) WithInterval(interval time.Duration) *Watchdog {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// WithFreezeThreshold sets how many consecutive identical checks trigger
// the frozen callback, and the hash distance under which two frames count
// as identical.
func (w *Watchdog) WithFreezeThreshold(checks, maxDistance int) *Watchdog {
	if checks > 0 {
		w.freezeAfter = checks
	}
	if maxDistance >= 0 {
		w.maxDistance = maxDistance
	}
	return w
}

// WithOnFrozen sets the callback fired when a freeze is detected
func (w *Watchdog) WithOnFrozen(callback FrozenCallback) *Watchdog {
	w.onFrozen = callback
	return w
}

// WithEventBus publishes screen.frozen events to the bus
func (w *Watchdog) WithEventBus(bus events.EventBus) *Watchdog {
	w.bus = bus
	return w
}

// WithLogger sets the logger
func (w *Watchdog) WithLogger(logger *logging.Logger) *Watchdog {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Start begins background monitoring. Calling Start on a running watchdog
// is a no-op.
func (w *Watchdog) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	w.wg.Add(1)
	go w.monitor()
}

// Stop halts monitoring and waits for the background goroutine to exit.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

// Reset clears the freeze counter and baseline, for example after the
// caller recovered the stream by reloading the table.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastHash = nil
	w.consecutive = 0
}

func (w *Watchdog) monitor() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check captures one frame and updates the freeze counter. Capture and
// hashing failures reset the baseline rather than counting either way:
// a flaky capture is the polling loop's problem, not a frozen screen.
func (w *Watchdog) check() {
	frame, err := w.source.Capture(nil)
	if err != nil {
		w.logger.Debugf("Watchdog capture failed: %v", err)
		w.Reset()
		return
	}

	hash, err := goimagehash.PerceptionHash(frame.RGBA)
	if err != nil {
		w.logger.Debugf("Watchdog hash failed: %v", err)
		w.Reset()
		return
	}

	w.mu.Lock()
	prev := w.lastHash
	w.lastHash = hash

	if prev == nil {
		w.consecutive = 0
		w.mu.Unlock()
		return
	}

	distance, err := hash.Distance(prev)
	if err != nil {
		w.consecutive = 0
		w.mu.Unlock()
		return
	}

	if distance > w.maxDistance {
		w.consecutive = 0
		w.mu.Unlock()
		return
	}

	w.consecutive++
	consecutive := w.consecutive
	fire := consecutive >= w.freezeAfter
	if fire {
		// Restart the count so recovery gets a full window before the
		// next alert.
		w.consecutive = 0
	}
	w.mu.Unlock()

	if !fire {
		return
	}

	w.logger.Warnf("Screen frozen: %d consecutive unchanged checks (distance %d)", consecutive, distance)

	if w.bus != nil {
		w.bus.Publish(events.NewScreenFrozenEvent(consecutive, distance))
	}
	if w.onFrozen != nil {
		w.onFrozen(consecutive, distance)
	}
}
