package games

import (
	"context"
	"fmt"
	"time"

	"feltworks.io/live-table-go/internal/bot"
)

// Crazy Time states. Most of the round is a passive wait; the only
// interactive bonus is Cash Hunt.
const (
	StateIdle          = "idle"
	StateBonusCashHunt = "bonus_cash_hunt"
)

// CrazyTime plays the Crazy Time money wheel: a fixed set of segment bets
// each betting window, plus a pick during the Cash Hunt bonus.
type CrazyTime struct {
	base

	betsPlaced bool
	lastState  string
}

// NewCrazyTime builds the crazy time behavior. The config must define the
// betting_open element and at least one bet.
func NewCrazyTime(deps Deps) (bot.Behavior, error) {
	g := &CrazyTime{
		base:      newBase(deps, "crazytime", 2*time.Second),
		lastState: StateIdle,
	}
	if !g.configured("betting_open") {
		return nil, fmt.Errorf("crazy time config missing element %q", "betting_open")
	}
	if len(g.deps.Config.Bets) == 0 {
		return nil, fmt.Errorf("crazy time config has no bets")
	}

	g.log.Infof("Configured bets: %d segments", len(g.deps.Config.Bets))
	return g, nil
}

func (g *CrazyTime) Name() string { return "crazy_time" }

// OnStart reads the opening balance.
func (g *CrazyTime) OnStart(ctx context.Context) error {
	g.recordStart()
	return nil
}

// DetectState needs only two signals: the Cash Hunt overlay and the
// betting-open banner. Everything else is idle.
func (g *CrazyTime) DetectState(ctx context.Context) (string, error) {
	if found, err := g.detect("bonus_cashhunt"); err != nil {
		return "", err
	} else if found {
		return StateBonusCashHunt, nil
	}

	if found, err := g.detect("betting_open"); err != nil {
		return "", err
	} else if found {
		return StateBetting, nil
	}

	return StateIdle, nil
}

func (g *CrazyTime) Step(ctx context.Context, state string) error {
	if state != g.lastState {
		// Betting just closed: the round is underway, log the one before.
		if g.lastState == StateBetting && state == StateIdle {
			g.logRound("round")
		}
		g.lastState = state
	}

	switch state {
	case StateBetting:
		g.stepBetting()
	case StateBonusCashHunt:
		g.stepCashHunt(ctx)
	default:
		g.betsPlaced = false
		g.sleep(g.poll)
	}
	return nil
}

// stepBetting places every configured bet once per window, in shuffled
// order so the click pattern varies round to round.
func (g *CrazyTime) stepBetting() {
	if g.betsPlaced {
		g.sleep(g.poll)
		return
	}

	g.log.Info("Betting phase — placing bets")

	bets := make([]int, len(g.deps.Config.Bets))
	for i := range bets {
		bets[i] = i
	}
	g.deps.Rand.Shuffle(len(bets), func(i, j int) {
		bets[i], bets[j] = bets[j], bets[i]
	})

	for _, idx := range bets {
		bet := g.deps.Config.Bets[idx]

		if point, ok := bet.Click(); ok {
			g.deps.Pointer.ClickPoint(point.X, point.Y)
			g.log.Infof("Bet placed: %s ($%.2f)", bet.Segment, bet.Amount)
			continue
		}

		// No coordinates: match the segment template on the layout.
		if g.clickElement("bet_segments." + bet.Segment) {
			g.log.Infof("Bet placed: %s ($%.2f)", bet.Segment, bet.Amount)
		} else {
			g.log.Warnf("Could not find segment: %s", bet.Segment)
		}
	}

	g.clickElement("confirm_bet")

	g.betsPlaced = true
	g.deps.Pointer.MoveAway()
	g.log.Info("All bets placed — waiting for spin")
}

// stepCashHunt picks a random spot on the multiplier grid, then waits for
// the next betting window before logging the bonus round.
func (g *CrazyTime) stepCashHunt(ctx context.Context) {
	g.log.Info("BONUS: Cash Hunt — picking a spot")
	g.deps.Pointer.RandomDelay(time.Second, 2*time.Second)

	if region, ok := g.deps.Config.Region("cash_hunt_grid"); ok {
		g.deps.Pointer.ClickRegionRandom(region)
		g.log.Info("Cash Hunt: spot selected")
	} else {
		g.log.Warn("Cash Hunt grid region not configured — skipping pick")
	}

	// The bonus plays out on its own; betting_open reappearing means the
	// wheel is back to normal rounds.
	g.deps.Screen.WaitForTemplate(ctx, "betting_open", time.Minute)

	g.logRound("bonus_cash_hunt")
	g.log.Info("Cash Hunt bonus complete")
}
