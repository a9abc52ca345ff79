package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/events"
	"feltworks.io/live-table-go/internal/logging"
)

// LoopState is the lifecycle state of the polling loop itself, not of the
// game it drives.
type LoopState string

const (
	LoopRunning  LoopState = "running"
	LoopStopping LoopState = "stopping"
	LoopStopped  LoopState = "stopped"
)

// ErrLoopAlreadyRunning is returned by Run when the loop is mid-session.
var ErrLoopAlreadyRunning = errors.New("loop already running")

// Behavior supplies the game-specific half of the loop: recognizing which
// state the screen shows and acting on it. The loop never inspects beyond
// these two calls.
type Behavior interface {
	Name() string
	DetectState(ctx context.Context) (string, error)
	Step(ctx context.Context, state string) error
}

// StartHook is implemented by behaviors that need setup when the session
// begins, such as reading the opening balance.
type StartHook interface {
	OnStart(ctx context.Context) error
}

// StopHook is implemented by behaviors that need teardown, such as
// cancelling an active autoplay.
type StopHook interface {
	OnStop()
}

// ErrorHook is implemented by behaviors that want to observe recovered
// errors. The loop has already logged and will cool down regardless.
type ErrorHook interface {
	OnError(err error, phase string)
}

// PreCheck runs before state detection each iteration, reserved for
// cross-cutting interrupts like a dismissible overlay. Returning true means
// the interrupt was handled and the rest of the iteration is skipped.
type PreCheck func(ctx context.Context) (bool, error)

// Loop drives the poll-detect-act cycle: each iteration checks for expiry
// and cancellation, runs the pre-check, asks the behavior for the current
// state, and steps it. Errors from any phase are recovered with a cooldown;
// only session expiry or an explicit stop ends the loop.
type Loop struct {
	behavior Behavior
	session  *Session
	logger   *logging.Logger
	bus      events.EventBus
	reporter *logging.ErrorReporter

	preCheck PreCheck
	cooldown time.Duration
	sleep    func(time.Duration)

	mu        sync.Mutex
	state     LoopState
	stopCh    chan struct{}
	stopOnce  *sync.Once
	lastState string
}

// NewLoop creates a loop for a behavior and its session.
func NewLoop(behavior Behavior, session *Session) *Loop {
	return &Loop{
		behavior: behavior,
		session:  session,
		logger:   logging.NewLogger("loop"),
		cooldown: 5 * time.Second,
		sleep:    time.Sleep,
		state:    LoopStopped,
	}
}

// WithPreCheck installs the cross-cutting interrupt hook
func (l *Loop) WithPreCheck(check PreCheck) *Loop {
	l.preCheck = check
	return l
}

// WithCooldown sets the pause after a recovered error
func (l *Loop) WithCooldown(d time.Duration) *Loop {
	if d >= 0 {
		l.cooldown = d
	}
	return l
}

// WithEventBus publishes loop lifecycle events to the bus
func (l *Loop) WithEventBus(bus events.EventBus) *Loop {
	l.bus = bus
	return l
}

// WithErrorReporter records recovered errors for post-session auditing
func (l *Loop) WithErrorReporter(reporter *logging.ErrorReporter) *Loop {
	l.reporter = reporter
	return l
}

// WithLogger sets the logger
func (l *Loop) WithLogger(logger *logging.Logger) *Loop {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stop requests a graceful stop. The in-flight iteration completes first;
// the request is observed at the next iteration boundary. Safe to call from
// any goroutine, any number of times, including before Run.
func (l *Loop) Stop() {
	l.mu.Lock()
	stopCh := l.stopCh
	stopOnce := l.stopOnce
	l.mu.Unlock()

	if stopCh == nil {
		return
	}
	stopOnce.Do(func() {
		close(stopCh)
	})
}

// Run executes the loop until the session expires, the context is
// cancelled, or Stop is called. Teardown (stop hook, session close, final
// summary) always runs, whatever path ended the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.state != LoopStopped {
		l.mu.Unlock()
		return ErrLoopAlreadyRunning
	}
	l.state = LoopRunning
	l.stopCh = make(chan struct{})
	l.stopOnce = &sync.Once{}
	l.lastState = ""
	l.mu.Unlock()

	if err := l.session.Begin(); err != nil {
		l.setState(LoopStopped)
		return fmt.Errorf("begin session: %w", err)
	}

	l.logger.Infof("Starting %s", l.behavior.Name())
	if l.session.Duration > 0 {
		l.logger.Infof("Session duration: %.0f minutes", l.session.Duration.Minutes())
	}

	if l.bus != nil {
		l.bus.Publish(events.NewSessionStartedEvent(l.behavior.Name(), l.session.ID, l.session.Duration))
	}

	if hook, ok := l.behavior.(StartHook); ok {
		if err := hook.OnStart(ctx); err != nil {
			l.recover(ctx, err, "start")
		}
	}

	for l.iterate(ctx) {
	}

	l.teardown()
	return nil
}

// iterate runs one loop cycle and reports whether another should follow.
func (l *Loop) iterate(ctx context.Context) bool {
	if l.shouldStop(ctx) {
		return false
	}

	if l.preCheck != nil {
		handled, err := l.preCheck(ctx)
		if err != nil {
			l.recover(ctx, err, "pre-check")
			return true
		}
		if handled {
			return true
		}
	}

	state, err := l.behavior.DetectState(ctx)
	if err != nil {
		l.recover(ctx, err, "detect state")
		return true
	}

	l.noteState(state)

	if err := l.behavior.Step(ctx, state); err != nil {
		l.recover(ctx, err, "step "+state)
		return true
	}

	return true
}

// shouldStop checks the cooperative cancellation points: context, explicit
// stop, and the session timer. Any of them moves the loop to Stopping.
func (l *Loop) shouldStop(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		l.logger.Info("Context cancelled — stopping")
		l.setState(LoopStopping)
		return true
	default:
	}

	l.mu.Lock()
	stopCh := l.stopCh
	l.mu.Unlock()
	select {
	case <-stopCh:
		l.logger.Info("Stop requested — stopping after current action")
		l.setState(LoopStopping)
		return true
	default:
	}

	if l.session.Expired() {
		l.logger.Info("Session time expired — stopping")
		l.setState(LoopStopping)
		return true
	}

	return false
}

// recover logs a phase error, notifies the behavior, and sleeps the
// cooldown so a persistent fault cannot spin the loop hot. Context
// cancellation errors skip the cooldown; the next boundary check exits.
func (l *Loop) recover(ctx context.Context, err error, phase string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	fields := map[string]interface{}{
		"game": l.behavior.Name(),
	}
	if l.reporter != nil {
		l.reporter.ReportErrorWithContext(errorCategory(err), logging.ErrorSeverityMedium,
			"loop", "Recovered during "+phase, err, fields)
	} else {
		l.logger.ErrorWithContext("Error during "+phase, err, fields)
	}

	if l.bus != nil {
		l.bus.Publish(events.NewErrorEvent("loop", phase, err))
	}

	if hook, ok := l.behavior.(ErrorHook); ok {
		hook.OnError(err, phase)
	}

	if l.cooldown > 0 {
		l.sleep(l.cooldown)
	}
}

// noteState publishes a state-change event when the detected state moves.
func (l *Loop) noteState(state string) {
	l.mu.Lock()
	prev := l.lastState
	l.lastState = state
	l.mu.Unlock()

	if prev == state {
		return
	}
	l.logger.Debugf("State: %s -> %s", prev, state)
	if l.bus != nil && prev != "" {
		l.bus.Publish(events.NewStateChangedEvent(l.behavior.Name(), prev, state))
	}
}

// errorCategory buckets a recovered error for the audit trail.
func errorCategory(err error) logging.ErrorCategory {
	var captureErr *cv.CaptureError
	if errors.As(err, &captureErr) {
		return logging.ErrorCategoryCapture
	}
	return logging.ErrorCategoryGame
}

func (l *Loop) teardown() {
	l.setState(LoopStopping)

	if hook, ok := l.behavior.(StopHook); ok {
		hook.OnStop()
	}

	if err := l.session.Close(); err != nil {
		l.logger.Warnf("Closing round log failed: %v", err)
	}
	l.session.LogSummary()

	if l.reporter != nil {
		if total := l.reporter.GetErrorStats()["total"]; total > 0 {
			l.logger.Infof("Recovered errors this session: %d", total)
		}
	}

	if l.bus != nil {
		l.bus.Publish(events.NewSessionCompletedEvent(
			l.behavior.Name(), l.session.ID, l.session.Rounds(), l.session.Elapsed()))
	}

	l.setState(LoopStopped)
}

func (l *Loop) setState(state LoopState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}
