package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBehavior drives the loop from a test: it can fail specific iterations
// and stop the loop after a set number of steps.
type fakeBehavior struct {
	mu          sync.Mutex
	loop        *Loop
	detectCalls int
	stepCalls   int
	failOn      map[int]error // detect call number -> error
	stopAfter   int           // stop the loop after this many steps
	started     int
	stopped     int
	errPhases   []string
}

func (f *fakeBehavior) Name() string { return "fake" }

func (f *fakeBehavior) DetectState(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectCalls++
	if err, ok := f.failOn[f.detectCalls]; ok {
		return "", err
	}
	return "idle", nil
}

func (f *fakeBehavior) Step(ctx context.Context, state string) error {
	f.mu.Lock()
	f.stepCalls++
	steps := f.stepCalls
	f.mu.Unlock()
	if f.stopAfter > 0 && steps >= f.stopAfter {
		f.loop.Stop()
	}
	return nil
}

func (f *fakeBehavior) OnStart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return nil
}

func (f *fakeBehavior) OnStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeBehavior) OnError(err error, phase string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errPhases = append(f.errPhases, phase)
}

func (f *fakeBehavior) counts() (detect, step int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detectCalls, f.stepCalls
}

func newTestLoop(behavior *fakeBehavior) *Loop {
	loop := NewLoop(behavior, NewSession("fake", 0)).WithCooldown(0)
	loop.sleep = func(time.Duration) {}
	behavior.loop = loop
	return loop
}

func TestLoopStopsOnRequest(t *testing.T) {
	behavior := &fakeBehavior{stopAfter: 3}
	loop := newTestLoop(behavior)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	_, steps := behavior.counts()
	if steps != 3 {
		t.Errorf("Expected 3 steps before stop, got %d", steps)
	}
	if got := loop.State(); got != LoopStopped {
		t.Errorf("Expected state %s after Run, got %s", LoopStopped, got)
	}
	if behavior.started != 1 || behavior.stopped != 1 {
		t.Errorf("Expected start/stop hooks once each, got %d/%d", behavior.started, behavior.stopped)
	}
}

func TestLoopRecoversFromDetectError(t *testing.T) {
	behavior := &fakeBehavior{
		failOn:    map[int]error{1: errors.New("capture glitch")},
		stopAfter: 2,
	}
	loop := newTestLoop(behavior)

	var cooldowns int
	loop.sleep = func(time.Duration) { cooldowns++ }

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	detect, steps := behavior.counts()
	if detect != 3 {
		t.Errorf("Expected detect to be retried after the error (3 calls), got %d", detect)
	}
	if steps != 2 {
		t.Errorf("Expected 2 successful steps, got %d", steps)
	}
	if len(behavior.errPhases) != 1 || behavior.errPhases[0] != "detect state" {
		t.Errorf("Expected one error hook for 'detect state', got %v", behavior.errPhases)
	}
}

func TestLoopCooldownAfterError(t *testing.T) {
	behavior := &fakeBehavior{
		failOn:    map[int]error{1: errors.New("boom"), 2: errors.New("boom")},
		stopAfter: 1,
	}
	loop := newTestLoop(behavior).WithCooldown(time.Millisecond)

	var cooldowns int
	loop.sleep = func(d time.Duration) {
		if d != time.Millisecond {
			t.Errorf("Expected 1ms cooldown, got %v", d)
		}
		cooldowns++
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if cooldowns != 2 {
		t.Errorf("Expected 2 cooldown sleeps, got %d", cooldowns)
	}
}

func TestLoopSessionExpiry(t *testing.T) {
	behavior := &fakeBehavior{}
	loop := NewLoop(behavior, NewSession("fake", 20*time.Millisecond)).WithCooldown(0)
	behavior.loop = loop

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop after session expiry")
	}

	if got := loop.State(); got != LoopStopped {
		t.Errorf("Expected %s after expiry, got %s", LoopStopped, got)
	}
}

func TestLoopContextCancellation(t *testing.T) {
	behavior := &fakeBehavior{}
	loop := newTestLoop(behavior)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not honor context cancellation")
	}
}

func TestLoopPreCheckSkipsIteration(t *testing.T) {
	behavior := &fakeBehavior{stopAfter: 1}
	loop := newTestLoop(behavior)

	var checks int
	loop.WithPreCheck(func(ctx context.Context) (bool, error) {
		checks++
		// First two iterations are consumed by the interrupt.
		return checks <= 2, nil
	})

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	detect, _ := behavior.counts()
	if checks != 3 {
		t.Errorf("Expected 3 pre-checks, got %d", checks)
	}
	if detect != 1 {
		t.Errorf("Expected detection skipped while pre-check handled, got %d calls", detect)
	}
}

func TestLoopRejectsConcurrentRun(t *testing.T) {
	release := make(chan struct{})
	behavior := &fakeBehavior{}
	loop := newTestLoop(behavior)
	loop.WithPreCheck(func(ctx context.Context) (bool, error) {
		<-release
		return true, nil
	})

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// Wait until the first Run is inside an iteration.
	deadline := time.Now().Add(time.Second)
	for loop.State() != LoopRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := loop.Run(context.Background()); !errors.Is(err, ErrLoopAlreadyRunning) {
		t.Errorf("Expected ErrLoopAlreadyRunning, got %v", err)
	}

	loop.Stop()
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}
