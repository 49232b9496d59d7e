package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
width: 1024
bomb:
  fuse: 4s
collision:
  tieBreak: nearest
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Width != 1024 {
		t.Errorf("expected width 1024, got %f", cfg.Width)
	}
	if cfg.Height != 600 {
		t.Errorf("expected default height 600, got %f", cfg.Height)
	}
	if cfg.Bomb.Fuse != 4*time.Second {
		t.Errorf("expected fuse 4s, got %v", cfg.Bomb.Fuse)
	}
	if cfg.Bomb.Warning != time.Second {
		t.Errorf("expected default warning 1s, got %v", cfg.Bomb.Warning)
	}
	if cfg.Collision.TieBreak != "nearest" {
		t.Errorf("expected nearest, got %s", cfg.Collision.TieBreak)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := writeFile(t, "config.yaml", "maxEntities: 0\n")
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero canvas", func(c *Config) { c.Width = 0 }},
		{"no lives", func(c *Config) { c.Player.Lives = 0 }},
		{"no boss health", func(c *Config) { c.Boss.MaxHealth = 0 }},
		{"warning exceeds fuse", func(c *Config) { c.Bomb.Warning = c.Bomb.Fuse + time.Millisecond }},
		{"no waves", func(c *Config) { c.Waves.TotalWaves = 0 }},
		{"negative columns", func(c *Config) { c.Waves.Columns = -1 }},
		{"negative rows", func(c *Config) { c.Waves.Rows = -1 }},
		{"zero spacing", func(c *Config) { c.Waves.SpacingY = 0 }},
		{"bad tie break", func(c *Config) { c.Collision.TieBreak = "random" }},
		{"zero cell", func(c *Config) { c.Collision.CellSize = 0 }},
		{"no basic kind", func(c *Config) { delete(c.Kinds, "basic") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestStatsFallsBackToBasic(t *testing.T) {
	cfg := DefaultConfig()
	delete(cfg.Kinds, "supreme")
	if got := cfg.stats(InvaderSupreme); got != cfg.Kinds["basic"] {
		t.Errorf("expected basic stats, got %+v", got)
	}
}

func TestLoadLevel(t *testing.T) {
	path := writeFile(t, "level.yaml", `
name: training
totalWaves: 2
bossPersonality: chaotic
waves:
  - formation: diamond
    columns: 4
    invaders:
      - kind: armored
        behavior: defensive
        count: 4
  - invaders:
      - kind: fast
        count: 6
`)
	level, err := LoadLevel(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level.Name != "training" || level.TotalWaves != 2 || len(level.Waves) != 2 {
		t.Fatalf("unexpected level: %+v", level)
	}
	w := newTestWorld(t, level, nil)
	if w.Director().TotalWaves != 2 {
		t.Errorf("expected 2 total waves, got %d", w.Director().TotalWaves)
	}
	if w.Director().Formation().Kind != FormationDiamond {
		t.Errorf("expected diamond, got %s", w.Director().Formation().Kind)
	}
	got := invaders(w)
	if len(got) != 4 || got[0].Invader.Kind != InvaderArmored || got[0].Invader.Behavior != BehaviorDefensive {
		t.Errorf("expected 4 armored defensive invaders, got %d", len(got))
	}
}

func TestLoadLevelBadYAML(t *testing.T) {
	path := writeFile(t, "level.yaml", "waves: [\n")
	if _, err := LoadLevel(path); err == nil {
		t.Error("expected parse error")
	}
}
