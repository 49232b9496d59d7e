package sim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReferenceTick is the fixed step that velocities are expressed against.
// A frame of length dt advances motion by dt/ReferenceTick reference steps.
const ReferenceTick = time.Second / 60

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrRegistryInit  = errors.New("entity registry init failed")
)

// Config holds every tunable of the simulation core. Speeds are in pixels
// per reference tick, durations are simulated time.
type Config struct {
	Width       float64 `yaml:"width"`
	Height      float64 `yaml:"height"`
	MaxEntities int     `yaml:"maxEntities"`
	Seed        uint64  `yaml:"seed"`
	CullMargin  float64 `yaml:"cullMargin"`

	Player     PlayerConfig            `yaml:"player"`
	Invader    InvaderConfig           `yaml:"invader"`
	Kinds      map[string]InvaderStats `yaml:"kinds"`
	Boss       BossConfig              `yaml:"boss"`
	Bomb       BombConfig              `yaml:"bomb"`
	Projectile ProjectileConfig        `yaml:"projectile"`
	PowerUp    PowerUpConfig           `yaml:"powerUp"`
	Particle   ParticleConfig          `yaml:"particle"`
	Waves      WaveConfig              `yaml:"waves"`
	Collision  CollisionConfig         `yaml:"collision"`
	Advisory   AdvisoryConfig          `yaml:"advisory"`
	Score      ScoreConfig             `yaml:"score"`
	Weapons    map[string]WeaponDef    `yaml:"weapons"`
	Fallbacks  map[string][]string     `yaml:"fallbackPatterns"`
}

type PlayerConfig struct {
	Speed           float64       `yaml:"speed"`
	Radius          float64       `yaml:"radius"`
	Lives           int           `yaml:"lives"`
	Health          float64       `yaml:"health"`
	FireCooldown    time.Duration `yaml:"fireCooldown"`
	InvulnerableFor time.Duration `yaml:"invulnerableFor"`
	BottomMargin    float64       `yaml:"bottomMargin"`
}

type InvaderConfig struct {
	Radius         float64 `yaml:"radius"`
	BaseSpeed      float64 `yaml:"baseSpeed"`
	MoveDownAmount float64 `yaml:"moveDownAmount"`
	FirePerSecond  float64 `yaml:"firePerSecond"`
	Damage         float64 `yaml:"damage"`
}

// InvaderStats is the per-kind stat row.
type InvaderStats struct {
	Health     float64 `yaml:"health"`
	Speed      float64 `yaml:"speed"`
	FireRate   float64 `yaml:"fireRate"`
	Score      int     `yaml:"score"`
	Armor      float64 `yaml:"armor"`
	DropChance float64 `yaml:"dropChance"`
}

type BossConfig struct {
	MaxHealth        float64       `yaml:"maxHealth"`
	Width            float64       `yaml:"width"`
	Height           float64       `yaml:"height"`
	Speed            float64       `yaml:"speed"`
	AttackCooldown   time.Duration `yaml:"attackCooldown"`
	TeleportCooldown time.Duration `yaml:"teleportCooldown"`
	ShieldHealth     float64       `yaml:"shieldHealth"`
	ShieldDuration   time.Duration `yaml:"shieldDuration"`
	RageMultiplier   float64       `yaml:"rageMultiplier"`
	RageDuration     time.Duration `yaml:"rageDuration"`
	Phase2Speed      float64       `yaml:"phase2Speed"`
	Phase3Speed      float64       `yaml:"phase3Speed"`
	Personality      string        `yaml:"personality"`
	Score            int           `yaml:"score"`
	Damage           float64       `yaml:"damage"`
}

type BombConfig struct {
	ArmingDelay       time.Duration `yaml:"armingDelay"`
	Fuse              time.Duration `yaml:"fuse"`
	Warning           time.Duration `yaml:"warning"`
	ExplosionDuration time.Duration `yaml:"explosionDuration"`
	Radius            float64       `yaml:"radius"`
	ExplosionRadius   float64       `yaml:"explosionRadius"`
	Damage            float64       `yaml:"damage"`
	MaxBounces        int           `yaml:"maxBounces"`
	Restitution       float64       `yaml:"restitution"`
	Gravity           float64       `yaml:"gravity"`
	ProximityRadius   float64       `yaml:"proximityRadius"`
	ChainRadiusFactor float64       `yaml:"chainRadiusFactor"`
	ChainJitterMin    time.Duration `yaml:"chainJitterMin"`
	ChainJitterMax    time.Duration `yaml:"chainJitterMax"`
}

type ProjectileConfig struct {
	PlayerSpeed  float64       `yaml:"playerSpeed"`
	EnemySpeed   float64       `yaml:"enemySpeed"`
	Radius       float64       `yaml:"radius"`
	MaxAge       time.Duration `yaml:"maxAge"`
	SearchRadius float64       `yaml:"searchRadius"`
	MaxPiercing  int           `yaml:"maxPiercing"`
	Restitution  float64       `yaml:"restitution"`
}

type PowerUpConfig struct {
	FallSpeed     float64       `yaml:"fallSpeed"`
	MagneticRange float64       `yaml:"magneticRange"`
	MagneticPull  float64       `yaml:"magneticPull"`
	Lifetime      time.Duration `yaml:"lifetime"`
	Radius        float64       `yaml:"radius"`
	BaseDuration  time.Duration `yaml:"baseDuration"`
	ShieldHealth  float64       `yaml:"shieldHealth"`
	Score         int           `yaml:"score"`
}

type ParticleConfig struct {
	PerExplosion int           `yaml:"perExplosion"`
	MaxAge       time.Duration `yaml:"maxAge"`
	Gravity      float64       `yaml:"gravity"`
	Friction     float64       `yaml:"friction"`
	Speed        float64       `yaml:"speed"`
}

type WaveConfig struct {
	TotalWaves       int           `yaml:"totalWaves"`
	Columns          int           `yaml:"columns"`
	Rows             int           `yaml:"rows"`
	SpacingX         float64       `yaml:"spacingX"`
	SpacingY         float64       `yaml:"spacingY"`
	OriginX          float64       `yaml:"originX"`
	OriginY          float64       `yaml:"originY"`
	SpeedScale       float64       `yaml:"speedScale"`
	FireScale        float64       `yaml:"fireScale"`
	CoordinationWave int           `yaml:"coordinationWave"`
	SyncFireCooldown time.Duration `yaml:"syncFireCooldown"`
	ShiftCooldown    time.Duration `yaml:"shiftCooldown"`
	ShiftDuration    time.Duration `yaml:"shiftDuration"`
	ClearDelay       time.Duration `yaml:"clearDelay"`
}

type CollisionConfig struct {
	TieBreak string  `yaml:"tieBreak"`
	CellSize float64 `yaml:"cellSize"`
}

type AdvisoryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
	MaxAge  time.Duration `yaml:"maxAge"`
}

type ScoreConfig struct {
	ComboWindow time.Duration `yaml:"comboWindow"`
	ComboMax    int           `yaml:"comboMax"`
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Width:       800,
		Height:      600,
		MaxEntities: 4096,
		Seed:        1,
		CullMargin:  50,
		Player: PlayerConfig{
			Speed:           5,
			Radius:          16,
			Lives:           3,
			Health:          100,
			FireCooldown:    250 * time.Millisecond,
			InvulnerableFor: 2 * time.Second,
			BottomMargin:    50,
		},
		Invader: InvaderConfig{
			Radius:         14,
			BaseSpeed:      1,
			MoveDownAmount: 20,
			FirePerSecond:  0.15,
			Damage:         20,
		},
		Kinds: map[string]InvaderStats{
			"basic":   {Health: 1, Speed: 1.0, FireRate: 1.0, Score: 10, DropChance: 0.05},
			"fast":    {Health: 1, Speed: 1.5, FireRate: 1.2, Score: 20, DropChance: 0.08},
			"armored": {Health: 3, Speed: 0.8, FireRate: 0.8, Score: 30, Armor: 0.25, DropChance: 0.12},
			"quantum": {Health: 2, Speed: 1.2, FireRate: 1.5, Score: 40, DropChance: 0.15},
			"supreme": {Health: 5, Speed: 1.0, FireRate: 2.0, Score: 100, Armor: 0.1, DropChance: 0.3},
		},
		Boss: BossConfig{
			MaxHealth:        500,
			Width:            120,
			Height:           60,
			Speed:            2,
			AttackCooldown:   1500 * time.Millisecond,
			TeleportCooldown: 6 * time.Second,
			ShieldHealth:     100,
			ShieldDuration:   300 * ReferenceTick,
			RageMultiplier:   2.0,
			RageDuration:     10 * time.Second,
			Phase2Speed:      0.2,
			Phase3Speed:      0.5,
			Personality:      "tactical",
			Score:            5000,
			Damage:           25,
		},
		Bomb: BombConfig{
			ArmingDelay:       500 * time.Millisecond,
			Fuse:              3000 * time.Millisecond,
			Warning:           1000 * time.Millisecond,
			ExplosionDuration: 400 * time.Millisecond,
			Radius:            10,
			ExplosionRadius:   60,
			Damage:            40,
			MaxBounces:        2,
			Restitution:       0.5,
			Gravity:           0.15,
			ProximityRadius:   0,
			ChainRadiusFactor: 0.8,
			ChainJitterMin:    60 * time.Millisecond,
			ChainJitterMax:    180 * time.Millisecond,
		},
		Projectile: ProjectileConfig{
			PlayerSpeed:  8,
			EnemySpeed:   4,
			Radius:       4,
			MaxAge:       3 * time.Second,
			SearchRadius: 250,
			MaxPiercing:  3,
			Restitution:  0.8,
		},
		PowerUp: PowerUpConfig{
			FallSpeed:     1.5,
			MagneticRange: 80,
			MagneticPull:  0.3,
			Lifetime:      10 * time.Second,
			Radius:        12,
			BaseDuration:  8 * time.Second,
			ShieldHealth:  50,
			Score:         50,
		},
		Particle: ParticleConfig{
			PerExplosion: 8,
			MaxAge:       600 * time.Millisecond,
			Gravity:      0.05,
			Friction:     0.96,
			Speed:        3,
		},
		Waves: WaveConfig{
			TotalWaves:       3,
			Columns:          8,
			Rows:             4,
			SpacingX:         56,
			SpacingY:         44,
			OriginX:          120,
			OriginY:          80,
			SpeedScale:       0.1,
			FireScale:        0.15,
			CoordinationWave: 3,
			SyncFireCooldown: 4 * time.Second,
			ShiftCooldown:    8 * time.Second,
			ShiftDuration:    1500 * time.Millisecond,
			ClearDelay:       time.Second,
		},
		Collision: CollisionConfig{
			TieBreak: string(TieBreakFirst),
			CellSize: 64,
		},
		Advisory: AdvisoryConfig{
			Enabled: true,
			Timeout: 50 * time.Millisecond,
			MaxAge:  2 * time.Second,
		},
		Score: ScoreConfig{
			ComboWindow: time.Second,
			ComboMax:    4,
		},
		Weapons:   defaultWeapons(),
		Fallbacks: defaultFallbackPatterns(),
	}
}

// LoadConfig reads a YAML file over the defaults, so a file only needs the
// keys it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the values a level cannot start without.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas must be positive, got %gx%g", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.MaxEntities <= 0 {
		return fmt.Errorf("%w: maxEntities must be > 0, got %d", ErrInvalidConfig, c.MaxEntities)
	}
	if c.Player.Lives <= 0 || c.Player.Health <= 0 {
		return fmt.Errorf("%w: player lives and health must be > 0", ErrInvalidConfig)
	}
	if c.Boss.MaxHealth <= 0 {
		return fmt.Errorf("%w: boss maxHealth must be > 0, got %g", ErrInvalidConfig, c.Boss.MaxHealth)
	}
	if c.Bomb.Warning > c.Bomb.Fuse {
		return fmt.Errorf("%w: bomb warning %v exceeds fuse %v", ErrInvalidConfig, c.Bomb.Warning, c.Bomb.Fuse)
	}
	if c.Waves.TotalWaves <= 0 {
		return fmt.Errorf("%w: totalWaves must be > 0, got %d", ErrInvalidConfig, c.Waves.TotalWaves)
	}
	if c.Waves.Columns <= 0 || c.Waves.Rows <= 0 {
		return fmt.Errorf("%w: wave grid must be positive, got %dx%d", ErrInvalidConfig, c.Waves.Columns, c.Waves.Rows)
	}
	if c.Waves.SpacingX <= 0 || c.Waves.SpacingY <= 0 {
		return fmt.Errorf("%w: wave spacing must be > 0", ErrInvalidConfig)
	}
	if _, ok := parseTieBreak(c.Collision.TieBreak); !ok {
		return fmt.Errorf("%w: unknown tieBreak %q", ErrInvalidConfig, c.Collision.TieBreak)
	}
	if c.Collision.CellSize <= 0 {
		return fmt.Errorf("%w: collision cellSize must be > 0", ErrInvalidConfig)
	}
	if _, ok := c.Kinds[InvaderBasic.String()]; !ok {
		return fmt.Errorf("%w: kinds table must define %q", ErrInvalidConfig, InvaderBasic.String())
	}
	return nil
}

// stats returns the stat row for an invader kind, falling back to basic.
func (c *Config) stats(k InvaderKind) InvaderStats {
	if s, ok := c.Kinds[k.String()]; ok {
		return s
	}
	return c.Kinds[InvaderBasic.String()]
}

// LevelData is the optional explicit description of a level's waves.
type LevelData struct {
	Name            string     `yaml:"name"`
	TotalWaves      int        `yaml:"totalWaves"`
	BossPersonality string     `yaml:"bossPersonality"`
	Waves           []WaveData `yaml:"waves"`
}

// WaveData is one wave roster.
type WaveData struct {
	Formation string      `yaml:"formation"`
	Columns   int         `yaml:"columns"`
	Invaders  []WaveEntry `yaml:"invaders"`
}

// WaveEntry adds Count invaders of one kind and behavior.
type WaveEntry struct {
	Kind     string `yaml:"kind"`
	Behavior string `yaml:"behavior"`
	Count    int    `yaml:"count"`
}

// LoadLevel reads a level YAML file. Per-entry problems are not rejected here;
// the wave director substitutes defaults when it builds the roster.
func LoadLevel(path string) (*LevelData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}
	var level LevelData
	if err := yaml.Unmarshal(data, &level); err != nil {
		return nil, fmt.Errorf("failed to parse level YAML: %w", err)
	}
	return &level, nil
}
