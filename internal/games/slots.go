package games

import (
	"context"
	"fmt"
	"math"
	"time"

	"feltworks.io/live-table-go/internal/bot"
	"feltworks.io/live-table-go/internal/cv"
)

// Slot states. Manual mode cycles SET_BET -> SPIN -> SPINNING; autoplay
// mode starts the game's own autoplay and monitors it. Bonus states
// preempt both.
const (
	SlotSetBet         = "set_bet"
	SlotSpin           = "spin"
	SlotSpinning       = "spinning"
	SlotBonusFreeSpins = "bonus_free_spins"
	SlotBonusPick      = "bonus_pick"
	SlotBonusWheel     = "bonus_wheel"
	SlotStartAutoplay  = "start_autoplay"
	SlotMonitoring     = "monitoring"
	SlotResumeAutoplay = "resume_autoplay"
)

const (
	balanceCheckInterval = 30 * time.Second
	maxBonusPicks        = 20
)

// Slots runs any slot machine described by a game config: set the bet,
// spin (by hand or via the game's autoplay), and see bonus rounds through.
type Slots struct {
	base

	spinMode  string
	targetBet float64
	spinWait  time.Duration

	betSet           bool
	autoplayActive   bool
	lastBalanceCheck time.Time
}

// NewSlots builds the slots behavior. The config must define the
// spin_button element; autoplay mode additionally wants autoplay_button
// but falls back to manual when it never shows.
func NewSlots(deps Deps) (bot.Behavior, error) {
	g := &Slots{
		base:      newBase(deps, "slots", 2*time.Second),
		spinMode:  deps.Config.SpinMode,
		targetBet: deps.Config.Settings.TargetBet,
		spinWait:  deps.Config.SpinWait(3 * time.Second),
	}
	if g.spinMode == "" {
		g.spinMode = "manual"
	}
	if !g.configured("spin_button") {
		return nil, fmt.Errorf("slots config missing element %q", "spin_button")
	}

	g.log.Infof("Spin mode: %s", g.spinMode)
	g.log.Infof("Target bet: $%.2f", g.targetBet)
	return g, nil
}

func (g *Slots) Name() string { return "slots" }

// OnStart reads the opening balance.
func (g *Slots) OnStart(ctx context.Context) error {
	g.recordStart()
	return nil
}

// OnStop cancels a running autoplay so the machine does not keep spinning
// after the session ends.
func (g *Slots) OnStop() {
	if g.autoplayActive {
		g.cancelAutoplay()
	}
	if balance := g.readBalance(); balance != nil {
		g.log.Infof("Final balance: $%.2f", *balance)
	}
}

func (g *Slots) DetectState(ctx context.Context) (string, error) {
	// Bonus rounds preempt everything.
	bonuses := []struct {
		element string
		state   string
	}{
		{"bonus_pick", SlotBonusPick},
		{"bonus_free_spins", SlotBonusFreeSpins},
		{"bonus_wheel", SlotBonusWheel},
	}
	for _, bonus := range bonuses {
		if found, err := g.detect(bonus.element); err != nil {
			return "", err
		} else if found {
			return bonus.state, nil
		}
	}

	if g.spinMode == "autoplay" {
		return g.detectAutoplayState()
	}
	return g.detectManualState()
}

func (g *Slots) detectManualState() (string, error) {
	found, err := g.detect("spin_button")
	if err != nil {
		return "", err
	}
	if found {
		if !g.betSet {
			return SlotSetBet, nil
		}
		return SlotSpin, nil
	}
	// No spin button: mid-spin or a result screen.
	return SlotSpinning, nil
}

func (g *Slots) detectAutoplayState() (string, error) {
	if found, err := g.detect("autoplay_active"); err != nil {
		return "", err
	} else if found {
		g.autoplayActive = true
		return SlotMonitoring, nil
	}

	if found, err := g.detect("autoplay_button"); err != nil {
		return "", err
	} else if found {
		if !g.betSet {
			return SlotSetBet, nil
		}
		if !g.autoplayActive {
			return SlotStartAutoplay, nil
		}
		return SlotResumeAutoplay, nil
	}

	// Spin button visible means autoplay stopped.
	if found, err := g.detect("spin_button"); err != nil {
		return "", err
	} else if found {
		if !g.betSet {
			return SlotSetBet, nil
		}
		g.autoplayActive = false
		return SlotResumeAutoplay, nil
	}

	return SlotMonitoring, nil
}

func (g *Slots) Step(ctx context.Context, state string) error {
	switch state {
	case SlotSetBet:
		g.stepSetBet()
	case SlotSpin:
		g.stepSpin()
	case SlotSpinning:
		g.stepSpinning(ctx)
	case SlotBonusFreeSpins:
		g.stepBonusFreeSpins(ctx)
	case SlotBonusPick:
		g.stepBonusPick(ctx)
	case SlotBonusWheel:
		g.stepBonusWheel(ctx)
	case SlotStartAutoplay:
		g.stepStartAutoplay()
	case SlotMonitoring:
		g.stepMonitoring()
	case SlotResumeAutoplay:
		g.deps.Pointer.RandomDelay(time.Second, 2*time.Second)
		g.stepStartAutoplay()
	default:
		g.sleep(g.poll)
	}
	return nil
}

// stepSetBet drives the stake to the target: read the current amount,
// hammer bet-down to the minimum, then step up until the target is met.
func (g *Slots) stepSetBet() {
	g.log.Infof("Setting bet to $%.2f", g.targetBet)

	betRegion, hasRegion := g.deps.Config.Region("bet_amount")
	if hasRegion {
		if current, ok := g.readBetAmount(betRegion); ok {
			g.log.Infof("Current bet: $%.2f", current)
			if math.Abs(current-g.targetBet) < 0.01 {
				g.log.Info("Bet already correct")
				g.betSet = true
				return
			}
		}
	}

	if g.configured("bet_down") {
		g.log.Info("Clicking bet down to reach minimum")
		for i := 0; i < 20; i++ {
			if !g.clickElement("bet_down") {
				break
			}
		}

		if hasRegion && g.configured("bet_up") {
			for i := 0; i < 50; i++ {
				current, ok := g.readBetAmount(betRegion)
				if ok && current >= g.targetBet {
					break
				}
				g.clickElement("bet_up")
			}
		}
	}

	g.betSet = true
	g.deps.Pointer.RandomDelay(300*time.Millisecond, 500*time.Millisecond)

	if hasRegion {
		if final, ok := g.readBetAmount(betRegion); ok {
			g.log.Infof("Bet set to: $%.2f", final)
		}
	}
}

func (g *Slots) readBetAmount(region cv.Region) (float64, bool) {
	reading, err := g.deps.Reader.ReadNumber("bet_amount", region)
	if err != nil || !reading.Success {
		return 0, false
	}
	return reading.Value.Number, true
}

func (g *Slots) stepSpin() {
	if g.clickElement("spin_button") {
		g.log.Debug("Spin clicked")
		g.deps.Pointer.MoveAway()
		g.sleep(g.spinWait)
		g.checkRoundResult()
	} else {
		g.log.Warn("Could not find spin button")
		g.sleep(time.Second)
	}
}

// stepSpinning waits for the spin button to come back before logging the
// round.
func (g *Slots) stepSpinning(ctx context.Context) {
	match, err := g.deps.Screen.WaitForTemplate(ctx, "spin_button", 15*time.Second)
	if err == nil && match.Found {
		g.checkRoundResult()
		return
	}
	g.sleep(2 * time.Second)
}

// checkRoundResult logs the round, reading the balance only every
// balanceCheckInterval to keep OCR off the hot path.
func (g *Slots) checkRoundResult() {
	now := g.deps.Now()
	if now.Sub(g.lastBalanceCheck) > balanceCheckInterval {
		g.lastBalanceCheck = now
		g.logRound("")
	} else if g.deps.Session != nil {
		g.deps.Session.LogRound(nil, "")
	}

	g.deps.Pointer.Delay()
}

func (g *Slots) stepStartAutoplay() {
	g.log.Info("Starting autoplay")

	if !g.configured("autoplay_button") {
		g.log.Warn("Autoplay button not configured — falling back to manual mode")
		g.spinMode = "manual"
		return
	}

	if !g.clickElement("autoplay_button") {
		g.log.Warn("Could not click autoplay button")
		g.sleep(2 * time.Second)
		return
	}

	// Give the autoplay dialog time to open before confirming.
	g.sleep(time.Second)
	g.clickElement("autoplay_confirm")

	g.autoplayActive = true
	g.deps.Pointer.MoveAway()
	g.log.Info("Autoplay started")
	g.sleep(2 * time.Second)
}

func (g *Slots) stepMonitoring() {
	now := g.deps.Now()
	if now.Sub(g.lastBalanceCheck) > balanceCheckInterval {
		g.lastBalanceCheck = now
		g.logRound("autoplay")
	}
	g.sleep(g.poll)
}

func (g *Slots) cancelAutoplay() {
	if !g.configured("autoplay_stop") {
		return
	}
	g.log.Info("Cancelling autoplay")
	g.clickElement("autoplay_stop")
	g.autoplayActive = false
	g.sleep(time.Second)
}

// stepBonusFreeSpins waits out an auto-spinning bonus until the normal
// game controls return.
func (g *Slots) stepBonusFreeSpins(ctx context.Context) {
	g.log.Info("BONUS: free spins detected")

	targets := g.controlTargets()
	if len(targets) > 0 {
		// Free spins can run long.
		name, _, err := g.deps.Screen.WaitForAnyTemplate(ctx, targets, 2*time.Minute)
		if err == nil && name != "" {
			g.log.Infof("Free spins complete (detected: %s)", name)
		}
	} else {
		g.sleep(30 * time.Second)
	}

	g.checkRoundResult()
	g.log.Info("Free spins bonus finished")
}

// stepBonusPick clicks pick targets until the collect indicator or the
// normal game controls reappear, bounded at maxBonusPicks.
func (g *Slots) stepBonusPick(ctx context.Context) {
	g.log.Info("BONUS: pick round detected")
	g.deps.Pointer.RandomDelay(time.Second, 2*time.Second)

	picks := 0
	for i := 0; i < maxBonusPicks; i++ {
		if ctx.Err() != nil {
			break
		}

		if g.exists("pick_collect") {
			g.log.Info("Pick bonus: collect detected")
			g.clickElement("pick_collect")
			break
		}
		if g.exists("spin_button") {
			g.log.Info("Pick bonus: normal game UI returned")
			break
		}

		if g.configured("pick_target") {
			matches, err := g.deps.Screen.FindAllTemplates("pick_target")
			if err == nil && len(matches) > 0 {
				match := matches[g.deps.Rand.Intn(len(matches))]
				g.deps.Pointer.ClickPoint(match.Location.X, match.Location.Y)
				picks++
				g.log.Infof("Pick #%d at (%d, %d)", picks, match.Location.X, match.Location.Y)
			} else {
				// Nothing clickable: the grid may be animating.
				g.sleep(time.Second)
			}
		} else if region, ok := g.deps.Config.Region("pick_area"); ok {
			g.deps.Pointer.ClickRegionRandom(region)
			picks++
			g.deps.Pointer.RandomDelay(800*time.Millisecond, 1500*time.Millisecond)
		} else {
			g.sleep(time.Second)
		}
	}

	g.checkRoundResult()
	g.log.Infof("Pick bonus finished (%d picks)", picks)
}

// stepBonusWheel spins the bonus wheel and waits for the result.
func (g *Slots) stepBonusWheel(ctx context.Context) {
	g.log.Info("BONUS: wheel detected")
	g.deps.Pointer.RandomDelay(time.Second, 2*time.Second)

	g.clickElement("bonus_wheel")

	targets := g.controlTargets()
	if len(targets) > 0 {
		name, _, err := g.deps.Screen.WaitForAnyTemplate(ctx, targets, 30*time.Second)
		if err == nil && name != "" {
			g.log.Infof("Wheel bonus complete (detected: %s)", name)
		}
	} else {
		g.sleep(10 * time.Second)
	}

	g.checkRoundResult()
	g.log.Info("Wheel bonus finished")
}

// controlTargets lists the configured elements that mark a return to the
// normal game UI.
func (g *Slots) controlTargets() []string {
	var targets []string
	for _, name := range []string{"spin_button", "autoplay_button"} {
		if g.configured(name) {
			targets = append(targets, name)
		}
	}
	return targets
}

// exists reports whether a configured element is currently on screen,
// swallowing errors.
func (g *Slots) exists(name string) bool {
	if !g.configured(name) {
		return false
	}
	found, err := g.deps.Screen.TemplateExists(name)
	return err == nil && found
}
