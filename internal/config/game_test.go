package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeGameConfig writes a YAML config under root/config/games/ so that
// asset paths resolve against root.
func writeGameConfig(t *testing.T, root, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, "config", "games")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadGameConfig(t *testing.T) {
	root := t.TempDir()
	path := writeGameConfig(t, root, "infinite_blackjack.yaml", `
game:
  name: Infinite Blackjack
  platform: evolution
  asset_dir: assets/blackjack
elements:
  hit_button: hit.png
  stand_button: stand.png
  bet_segments:
    one: chip_1.png
    five: chip_5.png
regions:
  balance: {x: 100, y: 600, w: 200, h: 40}
  player_total: {x: 400, y: 300, w: 80, h: 50}
settings:
  session_duration: 90
  confidence: 0.9
  action_delay: [0.2, 0.8]
  poll_interval: 1.5
`)

	cfg, err := LoadGameConfig(path)
	if err != nil {
		t.Fatalf("LoadGameConfig failed: %v", err)
	}

	if cfg.Game.Name != "Infinite Blackjack" {
		t.Errorf("Expected name 'Infinite Blackjack', got %q", cfg.Game.Name)
	}
	if cfg.Game.Platform != "evolution" {
		t.Errorf("Expected platform evolution, got %q", cfg.Game.Platform)
	}

	wantAssets := filepath.Join(root, "assets", "blackjack")
	if cfg.AssetDir() != wantAssets {
		t.Errorf("Expected asset dir %s, got %s", wantAssets, cfg.AssetDir())
	}

	hit, ok := cfg.ElementPath("hit_button")
	if !ok {
		t.Fatal("Expected hit_button element")
	}
	if hit != filepath.Join(wantAssets, "hit.png") {
		t.Errorf("Expected resolved hit path, got %s", hit)
	}

	if _, ok := cfg.ElementPath("bet_segments"); ok {
		t.Error("Expected ElementPath to reject a grouped element")
	}
	group := cfg.ElementGroup("bet_segments")
	if len(group) != 2 {
		t.Fatalf("Expected 2 group members, got %d", len(group))
	}
	if group["five"] != filepath.Join(wantAssets, "chip_5.png") {
		t.Errorf("Expected resolved group path, got %s", group["five"])
	}

	balance, ok := cfg.Region("balance")
	if !ok {
		t.Fatal("Expected balance region")
	}
	if balance.X != 100 || balance.Y != 600 || balance.W != 200 || balance.H != 40 {
		t.Errorf("Unexpected balance region: %+v", balance)
	}

	if got := cfg.SessionDuration(); got != 90*time.Minute {
		t.Errorf("Expected 90m session, got %v", got)
	}
	min, max := cfg.DelayBounds()
	if min != 200*time.Millisecond || max != 800*time.Millisecond {
		t.Errorf("Expected delay 200ms..800ms, got %v..%v", min, max)
	}
	if got := cfg.PollInterval(time.Second); got != 1500*time.Millisecond {
		t.Errorf("Expected poll interval 1.5s, got %v", got)
	}
	if got := cfg.SpinWait(3 * time.Second); got != 3*time.Second {
		t.Errorf("Expected spin wait fallback 3s, got %v", got)
	}
}

func TestLoadGameConfigDefaults(t *testing.T) {
	root := t.TempDir()
	path := writeGameConfig(t, root, "slot_template.yaml", `
game:
  name: Slots
`)

	cfg, err := LoadGameConfig(path)
	if err != nil {
		t.Fatalf("LoadGameConfig failed: %v", err)
	}

	if got := cfg.SessionDuration(); got != 60*time.Minute {
		t.Errorf("Expected default 60m session, got %v", got)
	}
	if cfg.Settings.Confidence != 0.85 {
		t.Errorf("Expected default confidence 0.85, got %v", cfg.Settings.Confidence)
	}
	min, max := cfg.DelayBounds()
	if min != 300*time.Millisecond || max != time.Second {
		t.Errorf("Expected default delay 300ms..1s, got %v..%v", min, max)
	}
	if cfg.AssetDir() != filepath.Join(root, "assets") {
		t.Errorf("Expected default asset dir under root, got %s", cfg.AssetDir())
	}
}

func TestLoadGameConfigValidation(t *testing.T) {
	cases := []struct {
		name      string
		yaml      string
		wantField string
	}{
		{
			name:      "missing game name",
			yaml:      "game:\n  platform: test\n",
			wantField: "game.name",
		},
		{
			name:      "confidence out of range",
			yaml:      "game:\n  name: X\nsettings:\n  confidence: 1.5\n",
			wantField: "settings.confidence",
		},
		{
			name:      "action delay wrong length",
			yaml:      "game:\n  name: X\nsettings:\n  action_delay: [0.5]\n",
			wantField: "settings.action_delay",
		},
		{
			name:      "action delay min above max",
			yaml:      "game:\n  name: X\nsettings:\n  action_delay: [2.0, 1.0]\n",
			wantField: "settings.action_delay",
		},
		{
			name:      "zero size region",
			yaml:      "game:\n  name: X\nregions:\n  balance: {x: 0, y: 0, w: 0, h: 10}\n",
			wantField: "regions.balance",
		},
		{
			name:      "empty element",
			yaml:      "game:\n  name: X\nelements:\n  spin_button: \"\"\n",
			wantField: "elements.spin_button",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := t.TempDir()
			path := writeGameConfig(t, root, "bad.yaml", tc.yaml)

			_, err := LoadGameConfig(path)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			var cfgErr *Error
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *config.Error, got %T: %v", err, err)
			}
			if cfgErr.Field != tc.wantField {
				t.Errorf("Expected field %q, got %q", tc.wantField, cfgErr.Field)
			}
		})
	}
}

func TestLoadGameConfigMissingFile(t *testing.T) {
	_, err := LoadGameConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file, got nil")
	}
}

func TestSlug(t *testing.T) {
	cfg := &GameConfig{Game: GameInfo{Name: "Crazy Time"}}
	if got := cfg.Slug(); got != "crazy_time" {
		t.Errorf("Expected crazy_time, got %q", got)
	}
	cfg.Game.Name = "Mega-Ball Live"
	if got := cfg.Slug(); got != "mega_ball_live" {
		t.Errorf("Expected mega_ball_live, got %q", got)
	}
}
