package games

import (
	"context"
	"fmt"
	"time"

	"feltworks.io/live-table-go/internal/bot"
	"feltworks.io/live-table-go/internal/ocr"
)

// Blackjack states, detected by template priority.
const (
	StateWaiting  = "waiting"  // dealer playing, results showing, between rounds
	StateBetting  = "betting"  // chip tray visible, bets open
	StateDecision = "decision" // hit button visible, player must act
)

// Blackjack plays live-dealer infinite blackjack: a flat bet every round
// and basic-strategy decisions read off the on-screen hand totals.
type Blackjack struct {
	base

	betPlaced bool
	lastState string
}

// NewBlackjack builds the blackjack behavior. The config must define the
// hit_button and chip_tray elements; everything else degrades gracefully.
func NewBlackjack(deps Deps) (bot.Behavior, error) {
	g := &Blackjack{
		base:      newBase(deps, "blackjack", time.Second),
		lastState: StateWaiting,
	}
	for _, required := range []string{"hit_button", "chip_tray"} {
		if !g.configured(required) {
			return nil, fmt.Errorf("blackjack config missing element %q", required)
		}
	}
	if g.deps.Config.BetSpot != nil {
		g.log.Infof("Bet spot: (%d, %d)", g.deps.Config.BetSpot.X, g.deps.Config.BetSpot.Y)
	}
	return g, nil
}

func (g *Blackjack) Name() string { return "infinite_blackjack" }

// OnStart reads the opening balance.
func (g *Blackjack) OnStart(ctx context.Context) error {
	g.recordStart()
	return nil
}

// DetectState classifies the screen. The hit button is the most reliable
// signal so it wins over the chip tray.
func (g *Blackjack) DetectState(ctx context.Context) (string, error) {
	if found, err := g.detect("hit_button"); err != nil {
		return "", err
	} else if found {
		return StateDecision, nil
	}

	if found, err := g.detect("chip_tray"); err != nil {
		return "", err
	} else if found {
		return StateBetting, nil
	}

	return StateWaiting, nil
}

func (g *Blackjack) Step(ctx context.Context, state string) error {
	if state != g.lastState {
		// Betting closed and the table went back to waiting: the round
		// we bet on has started, so log the previous one.
		if g.lastState == StateBetting && state == StateWaiting {
			g.logRound("round")
		}
		if state == StateBetting {
			g.betPlaced = false
		}
		g.lastState = state
	}

	switch state {
	case StateBetting:
		g.stepBetting()
	case StateDecision:
		g.stepDecision()
	default:
		g.sleep(g.poll)
	}
	return nil
}

// stepBetting places the flat bet once per round: repeat button when
// available, otherwise chip then bet spot.
func (g *Blackjack) stepBetting() {
	if g.betPlaced {
		g.sleep(g.poll)
		return
	}

	g.log.Info("Betting phase — placing bet")

	if g.clickElement("repeat_button") {
		g.log.Info("Bet placed via REPEAT")
		g.betPlaced = true
		g.deps.Pointer.MoveAway()
		return
	}

	if !g.clickElement("chip_1") {
		g.log.Warn("Could not find bet chip on screen")
		g.deps.Pointer.MoveAway()
		return
	}

	spot := g.deps.Config.BetSpot
	if spot == nil {
		g.log.Warn("bet_spot not configured — cannot place bet")
		g.deps.Pointer.MoveAway()
		return
	}

	g.deps.Pointer.ClickPoint(spot.X, spot.Y)
	g.log.Info("Bet placed: chip -> bet spot")
	g.betPlaced = true
	g.deps.Pointer.MoveAway()
}

// stepDecision reads both totals and acts on basic strategy. Unreadable
// totals get conservative play: stand on anything that can bust.
func (g *Blackjack) stepDecision() {
	total, soft, ok := g.readPlayerTotal()
	if !ok {
		g.log.Warn("Could not read player total — defaulting to stand")
		g.clickStand()
		return
	}

	upcard, ok := g.readDealerUpcard()
	if !ok {
		g.log.Warn("Could not read dealer total — using conservative play")
		if total >= 12 {
			g.clickStand()
		} else {
			g.clickHit()
		}
		return
	}

	action := BasicStrategy(total, upcard, soft)
	softLabel := ""
	if soft {
		softLabel = "soft "
	}
	g.log.Infof("Player: %s%d, Dealer: %d -> %s", softLabel, total, upcard, action)

	switch action {
	case ActionDouble:
		g.clickDouble()
	case ActionStand:
		g.clickStand()
	default:
		g.clickHit()
	}
}

func (g *Blackjack) clickHit() {
	if g.clickElement("hit_button") {
		g.log.Info("Action: HIT")
	} else {
		g.log.Warn("HIT button not found on screen")
	}
}

func (g *Blackjack) clickStand() {
	if g.clickElement("stand_button") {
		g.log.Info("Action: STAND")
	} else {
		g.log.Warn("STAND button not found on screen")
	}
}

// clickDouble doubles down, falling back to hit when doubling is not
// offered (only allowed on the first two cards).
func (g *Blackjack) clickDouble() {
	if g.clickElement("double_button") {
		g.log.Info("Action: DOUBLE")
		return
	}
	g.log.Info("DOUBLE not available — falling back to HIT")
	g.clickHit()
}

// readPlayerTotal reads the hand total, handling slash notation for soft
// hands ("11/21" is soft 21).
func (g *Blackjack) readPlayerTotal() (total int, soft bool, ok bool) {
	region, found := g.deps.Config.Region("player_total")
	if !found {
		return 0, false, false
	}

	reading, err := g.deps.Reader.ReadHand("player_total", region, ocr.WithWhitelist(ocr.WhitelistHand))
	if err != nil || !reading.Success {
		return 0, false, false
	}

	hand := reading.Value.Hand
	return hand.Value(), hand.Soft, true
}

// readDealerUpcard reads the dealer total, clamping face-card reads to 10.
func (g *Blackjack) readDealerUpcard() (int, bool) {
	region, found := g.deps.Config.Region("dealer_total")
	if !found {
		return 0, false
	}

	reading, err := g.deps.Reader.ReadHand("dealer_total", region, ocr.WithWhitelist(ocr.WhitelistDigits))
	if err != nil || !reading.Success {
		return 0, false
	}

	upcard := reading.Value.Hand.Value()
	if upcard > 11 {
		upcard = 10
	}
	return upcard, true
}
