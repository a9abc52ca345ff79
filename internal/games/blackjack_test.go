package games

import (
	"context"
	"testing"

	"feltworks.io/live-table-go/internal/config"
	"feltworks.io/live-table-go/internal/cv"
	"feltworks.io/live-table-go/internal/ocr"
)

func blackjackConfig() *config.GameConfig {
	return &config.GameConfig{
		Game: config.GameInfo{Name: "Infinite Blackjack"},
		Elements: map[string]config.ElementEntry{
			"hit_button":    {Path: "hit.png"},
			"stand_button":  {Path: "stand.png"},
			"double_button": {Path: "double.png"},
			"chip_tray":     {Path: "tray.png"},
			"chip_1":        {Path: "chip1.png"},
			"repeat_button": {Path: "repeat.png"},
		},
		Regions: map[string]cv.Region{
			"player_total": cv.NewRegion(800, 600, 60, 30),
			"dealer_total": cv.NewRegion(800, 100, 60, 30),
			"balance":      cv.NewRegion(40, 900, 120, 30),
		},
		Settings: config.GameSettings{Confidence: 0.9},
		BetSpot:  &config.ClickPoint{X: 640, Y: 480},
	}
}

func newTestBlackjack(t *testing.T, screen *fakeScreen, reader *fakeReader, pointer *fakePointer) *Blackjack {
	t.Helper()
	behavior, err := NewBlackjack(testDeps(blackjackConfig(), screen, reader, pointer))
	if err != nil {
		t.Fatalf("NewBlackjack failed: %v", err)
	}
	return behavior.(*Blackjack)
}

func TestBlackjackRequiresCoreElements(t *testing.T) {
	cfg := blackjackConfig()
	delete(cfg.Elements, "hit_button")

	_, err := NewBlackjack(testDeps(cfg, &fakeScreen{}, &fakeReader{}, &fakePointer{}))
	if err == nil {
		t.Fatal("Expected error for config without hit_button")
	}
}

func TestBlackjackDetectStatePriority(t *testing.T) {
	tests := []struct {
		name    string
		visible map[string]bool
		want    string
	}{
		{"hit button wins over chip tray", map[string]bool{"hit_button": true, "chip_tray": true}, StateDecision},
		{"chip tray means betting", map[string]bool{"chip_tray": true}, StateBetting},
		{"nothing means waiting", map[string]bool{}, StateWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := &fakeScreen{visible: tt.visible}
			game := newTestBlackjack(t, screen, &fakeReader{}, &fakePointer{})

			state, err := game.DetectState(context.Background())
			if err != nil {
				t.Fatalf("DetectState failed: %v", err)
			}
			if state != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, state)
			}
		})
	}
}

func TestBlackjackBetsOncePerRound(t *testing.T) {
	screen := &fakeScreen{visible: map[string]bool{"repeat_button": true}}
	pointer := &fakePointer{}
	game := newTestBlackjack(t, screen, &fakeReader{}, pointer)

	game.Step(context.Background(), StateBetting)
	game.Step(context.Background(), StateBetting)

	if len(pointer.matches) != 1 {
		t.Errorf("Expected one repeat-button click across two betting steps, got %d", len(pointer.matches))
	}
	if pointer.movedAway != 1 {
		t.Errorf("Expected pointer parked after betting, moved away %d times", pointer.movedAway)
	}
}

func TestBlackjackChipFallback(t *testing.T) {
	// No repeat button on the first round: chip then bet spot.
	screen := &fakeScreen{visible: map[string]bool{"chip_1": true}}
	pointer := &fakePointer{}
	game := newTestBlackjack(t, screen, &fakeReader{}, pointer)

	game.Step(context.Background(), StateBetting)

	if len(pointer.matches) != 1 {
		t.Fatalf("Expected the chip clicked once, got %d match clicks", len(pointer.matches))
	}
	if len(pointer.points) != 1 || pointer.points[0] != (cv.Point{X: 640, Y: 480}) {
		t.Errorf("Expected a click on the bet spot (640, 480), got %v", pointer.points)
	}
}

func TestBlackjackDecisionFollowsStrategy(t *testing.T) {
	tests := []struct {
		name       string
		player     ocr.HandTotal
		dealer     *ocr.HandTotal
		wantButton string
	}{
		{
			name:       "hard 16 vs 10 hits",
			player:     ocr.HandTotal{Low: 16, High: 16},
			dealer:     &ocr.HandTotal{Low: 10, High: 10},
			wantButton: "hit_button",
		},
		{
			name:       "hard 13 vs 6 stands",
			player:     ocr.HandTotal{Low: 13, High: 13},
			dealer:     &ocr.HandTotal{Low: 6, High: 6},
			wantButton: "stand_button",
		},
		{
			name:       "hard 11 vs 6 doubles",
			player:     ocr.HandTotal{Low: 11, High: 11},
			dealer:     &ocr.HandTotal{Low: 6, High: 6},
			wantButton: "double_button",
		},
		{
			name:       "soft 18 vs 9 hits",
			player:     ocr.HandTotal{Low: 8, High: 18, Soft: true},
			dealer:     &ocr.HandTotal{Low: 9, High: 9},
			wantButton: "hit_button",
		},
		{
			name:       "dealer face card clamps to 10",
			player:     ocr.HandTotal{Low: 16, High: 16},
			dealer:     &ocr.HandTotal{Low: 13, High: 13},
			wantButton: "hit_button",
		},
		{
			name:       "unreadable dealer with 14 stands",
			player:     ocr.HandTotal{Low: 14, High: 14},
			dealer:     nil,
			wantButton: "stand_button",
		},
		{
			name:       "unreadable dealer with 9 hits",
			player:     ocr.HandTotal{Low: 9, High: 9},
			dealer:     nil,
			wantButton: "hit_button",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeReader{hands: map[string]ocr.HandTotal{"player_total": tt.player}}
			if tt.dealer != nil {
				reader.hands["dealer_total"] = *tt.dealer
			}

			screen := &fakeScreen{visible: map[string]bool{
				"hit_button":    true,
				"stand_button":  true,
				"double_button": true,
			}}
			pointer := &fakePointer{}
			game := newTestBlackjack(t, screen, reader, pointer)

			game.Step(context.Background(), StateDecision)

			if got := screen.findCount(tt.wantButton); got != 1 {
				t.Errorf("Expected %s clicked once, looked up %d times (finds: %v)", tt.wantButton, got, screen.finds)
			}
			if len(pointer.matches) != 1 {
				t.Errorf("Expected exactly one button click, got %d", len(pointer.matches))
			}
		})
	}
}

func TestBlackjackUnreadablePlayerStands(t *testing.T) {
	screen := &fakeScreen{visible: map[string]bool{"stand_button": true}}
	pointer := &fakePointer{}
	game := newTestBlackjack(t, screen, &fakeReader{}, pointer)

	game.Step(context.Background(), StateDecision)

	if got := screen.findCount("stand_button"); got != 1 {
		t.Errorf("Expected stand on unreadable player total, finds: %v", screen.finds)
	}
}

func TestBlackjackDoubleFallsBackToHit(t *testing.T) {
	// Double decided but the button is gone (third card already dealt).
	reader := &fakeReader{hands: map[string]ocr.HandTotal{
		"player_total": {Low: 11, High: 11},
		"dealer_total": {Low: 6, High: 6},
	}}
	screen := &fakeScreen{visible: map[string]bool{"hit_button": true}}
	pointer := &fakePointer{}
	game := newTestBlackjack(t, screen, reader, pointer)

	game.Step(context.Background(), StateDecision)

	if got := screen.findCount("hit_button"); got != 1 {
		t.Errorf("Expected hit fallback when double unavailable, finds: %v", screen.finds)
	}
}

func TestBlackjackLogsRoundOnBettingClose(t *testing.T) {
	reader := &fakeReader{numbers: map[string]float64{"balance": 102.50}}
	screen := &fakeScreen{visible: map[string]bool{}}
	deps := testDeps(blackjackConfig(), screen, reader, &fakePointer{})
	behavior, err := NewBlackjack(deps)
	if err != nil {
		t.Fatalf("NewBlackjack failed: %v", err)
	}
	game := behavior.(*Blackjack)

	game.Step(context.Background(), StateBetting)
	game.Step(context.Background(), StateWaiting)

	if got := deps.Session.Rounds(); got != 1 {
		t.Errorf("Expected 1 round logged after betting closed, got %d", got)
	}
	_, current := deps.Session.Balances()
	if current == nil || *current != 102.50 {
		t.Errorf("Expected balance 102.50 recorded, got %v", current)
	}
}
