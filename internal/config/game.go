package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"feltworks.io/live-table-go/internal/cv"
)

// Error describes a problem with a specific config field
type Error struct {
	Path  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: field %q: %v", e.Path, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GameInfo identifies the game a config file drives
type GameInfo struct {
	Name     string `yaml:"name"`
	Platform string `yaml:"platform"`
	AssetDir string `yaml:"asset_dir"`
}

// ClickPoint is a fixed logical screen coordinate
type ClickPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ElementEntry is either a single template image path or a named group of
// them (e.g. one image per bet segment).
type ElementEntry struct {
	Path  string
	Group map[string]string
}

// UnmarshalYAML accepts both a plain string and a nested string map
func (e *ElementEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var path string
		if err := value.Decode(&path); err != nil {
			return err
		}
		e.Path = path
		return nil
	case yaml.MappingNode:
		group := make(map[string]string)
		if err := value.Decode(&group); err != nil {
			return err
		}
		e.Group = group
		return nil
	}
	return fmt.Errorf("element must be a path or a map of paths, got yaml kind %d", value.Kind)
}

// GameSettings holds the tunable knobs of a game config. Durations are
// expressed in the YAML as seconds (session_duration in minutes).
type GameSettings struct {
	SessionMinutes    float64     `yaml:"session_duration"`
	Confidence        float64     `yaml:"confidence"`
	ActionDelay       []float64   `yaml:"action_delay"`
	PollIntervalSec   float64     `yaml:"poll_interval"`
	SpinWaitSec       float64     `yaml:"spin_wait"`
	CooldownSec       float64     `yaml:"cooldown"`
	TargetBet         float64     `yaml:"target_bet"`
	RealityCheckClick *ClickPoint `yaml:"reality_check_click"`
}

// BetEntry is one configured wager for wheel-style games: the segment name
// and amount, plus either a fixed click point or (when no point is given) a
// template looked up in the bet_segments element group.
type BetEntry struct {
	Segment string  `yaml:"segment"`
	Amount  float64 `yaml:"amount"`
	ClickX  *int    `yaml:"click_x"`
	ClickY  *int    `yaml:"click_y"`
}

// Click returns the configured click point, if both coordinates are set.
func (b BetEntry) Click() (ClickPoint, bool) {
	if b.ClickX == nil || b.ClickY == nil {
		return ClickPoint{}, false
	}
	return ClickPoint{X: *b.ClickX, Y: *b.ClickY}, true
}

// AutoplayConfig tunes the autoplay spin mode of slot games
type AutoplayConfig struct {
	NumSpins int `yaml:"num_spins"`
}

// GameConfig is a parsed per-game YAML config file
type GameConfig struct {
	Game     GameInfo                `yaml:"game"`
	Elements map[string]ElementEntry `yaml:"elements"`
	Regions  map[string]cv.Region    `yaml:"regions"`
	Settings GameSettings            `yaml:"settings"`

	// Game-specific sections, consumed by the matching behavior
	SpinMode string         `yaml:"spin_mode"`
	BetSpot  *ClickPoint    `yaml:"bet_spot"`
	Bets     []BetEntry     `yaml:"bets"`
	Autoplay AutoplayConfig `yaml:"autoplay"`

	path     string
	assetDir string
}

// LoadGameConfig loads and validates a game config YAML file
func LoadGameConfig(path string) (*GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load game config: %w", err)
	}

	cfg := &GameConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse game config %s: %w", path, err)
	}
	cfg.path = path

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.assetDir = resolveProjectPath(path, cfg.Game.AssetDir)

	return cfg, nil
}

// resolveProjectPath resolves rel against the project root, taken to be
// two directories above the config file (config/games/x.yaml layout).
func resolveProjectPath(configPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	root := filepath.Dir(filepath.Dir(filepath.Dir(configPath)))
	return filepath.Join(root, rel)
}

func (c *GameConfig) applyDefaults() {
	if c.Game.AssetDir == "" {
		c.Game.AssetDir = "assets"
	}
	if c.Settings.SessionMinutes == 0 {
		c.Settings.SessionMinutes = 60
	}
	if c.Settings.Confidence == 0 {
		c.Settings.Confidence = 0.85
	}
	if len(c.Settings.ActionDelay) == 0 {
		c.Settings.ActionDelay = []float64{0.3, 1.0}
	}
}

func (c *GameConfig) validate() error {
	if c.Game.Name == "" {
		return &Error{Path: c.path, Field: "game.name", Err: fmt.Errorf("missing")}
	}
	if c.Settings.Confidence < 0 || c.Settings.Confidence > 1 {
		return &Error{Path: c.path, Field: "settings.confidence", Err: fmt.Errorf("must be between 0 and 1, got %v", c.Settings.Confidence)}
	}
	if len(c.Settings.ActionDelay) != 2 {
		return &Error{Path: c.path, Field: "settings.action_delay", Err: fmt.Errorf("expected [min, max], got %v", c.Settings.ActionDelay)}
	}
	if c.Settings.ActionDelay[0] < 0 || c.Settings.ActionDelay[1] < c.Settings.ActionDelay[0] {
		return &Error{Path: c.path, Field: "settings.action_delay", Err: fmt.Errorf("min must be >= 0 and <= max, got %v", c.Settings.ActionDelay)}
	}
	if c.Settings.SessionMinutes < 0 {
		return &Error{Path: c.path, Field: "settings.session_duration", Err: fmt.Errorf("must be positive, got %v", c.Settings.SessionMinutes)}
	}

	for key, entry := range c.Elements {
		if entry.Path == "" && len(entry.Group) == 0 {
			return &Error{Path: c.path, Field: "elements." + key, Err: fmt.Errorf("empty")}
		}
		for name, path := range entry.Group {
			if path == "" {
				return &Error{Path: c.path, Field: fmt.Sprintf("elements.%s.%s", key, name), Err: fmt.Errorf("empty")}
			}
		}
	}

	for key, region := range c.Regions {
		if err := region.Validate(); err != nil {
			return &Error{Path: c.path, Field: "regions." + key, Err: err}
		}
	}

	return nil
}

// Path returns the file the config was loaded from
func (c *GameConfig) Path() string {
	return c.path
}

// AssetDir returns the resolved template image directory
func (c *GameConfig) AssetDir() string {
	return c.assetDir
}

// Slug returns the game name as a filesystem-friendly identifier
func (c *GameConfig) Slug() string {
	slug := strings.ToLower(c.Game.Name)
	slug = strings.ReplaceAll(slug, " ", "_")
	slug = strings.ReplaceAll(slug, "-", "_")
	return slug
}

// ElementPath returns the resolved path of a flat element
func (c *GameConfig) ElementPath(key string) (string, bool) {
	entry, ok := c.Elements[key]
	if !ok || entry.Path == "" {
		return "", false
	}
	return filepath.Join(c.assetDir, entry.Path), true
}

// ElementGroup returns the resolved paths of a grouped element, keyed by
// the group member name. Returns an empty map for flat or missing keys.
func (c *GameConfig) ElementGroup(key string) map[string]string {
	entry, ok := c.Elements[key]
	if !ok || len(entry.Group) == 0 {
		return map[string]string{}
	}
	resolved := make(map[string]string, len(entry.Group))
	for name, path := range entry.Group {
		resolved[name] = filepath.Join(c.assetDir, path)
	}
	return resolved
}

// Region returns a named screen region
func (c *GameConfig) Region(key string) (cv.Region, bool) {
	region, ok := c.Regions[key]
	return region, ok
}

// SessionDuration returns the configured session length
func (c *GameConfig) SessionDuration() time.Duration {
	return time.Duration(c.Settings.SessionMinutes * float64(time.Minute))
}

// DelayBounds returns the min and max delay applied before actions
func (c *GameConfig) DelayBounds() (time.Duration, time.Duration) {
	min := time.Duration(c.Settings.ActionDelay[0] * float64(time.Second))
	max := time.Duration(c.Settings.ActionDelay[1] * float64(time.Second))
	return min, max
}

// PollInterval returns the poll interval, or fallback when unset
func (c *GameConfig) PollInterval(fallback time.Duration) time.Duration {
	if c.Settings.PollIntervalSec <= 0 {
		return fallback
	}
	return time.Duration(c.Settings.PollIntervalSec * float64(time.Second))
}

// SpinWait returns the post-spin wait, or fallback when unset
func (c *GameConfig) SpinWait(fallback time.Duration) time.Duration {
	if c.Settings.SpinWaitSec <= 0 {
		return fallback
	}
	return time.Duration(c.Settings.SpinWaitSec * float64(time.Second))
}

// Cooldown returns the after-bet cooldown, or fallback when unset
func (c *GameConfig) Cooldown(fallback time.Duration) time.Duration {
	if c.Settings.CooldownSec <= 0 {
		return fallback
	}
	return time.Duration(c.Settings.CooldownSec * float64(time.Second))
}
