package sim

import (
	"math"
	"time"
)

// Personality selects the boss's fallback attack table.
type Personality uint8

const (
	PersonalityAggressive Personality = iota
	PersonalityDefensive
	PersonalityTactical
	PersonalityChaotic
	personalityCount
)

var personalityNames = [personalityCount]string{"aggressive", "defensive", "tactical", "chaotic"}

func (p Personality) String() string {
	if p >= personalityCount {
		return "unknown"
	}
	return personalityNames[p]
}

// ParsePersonality maps a config name to a personality.
func ParsePersonality(s string) (Personality, bool) {
	for i, name := range personalityNames {
		if name == s {
			return Personality(i), true
		}
	}
	return PersonalityTactical, false
}

// Attack pattern names.
const (
	PatternSpread        = "spread"
	PatternAimed         = "aimed"
	PatternBombRain      = "bomb_rain"
	PatternSpiral        = "spiral"
	PatternHomingBarrage = "homing_barrage"
	PatternLaserSweep    = "laser_sweep"
)

func knownPattern(name string) bool {
	switch name {
	case PatternSpread, PatternAimed, PatternBombRain, PatternSpiral, PatternHomingBarrage, PatternLaserSweep:
		return true
	}
	return false
}

// Phase thresholds on health/max_health.
const (
	phase2Above = 0.66
	phase3Above = 0.33
)

// PhaseFor is the boss phase for a health value. It is the only source of
// the phase; nothing stores it incrementally.
func PhaseFor(health, maxHealth float64) int {
	if maxHealth <= 0 {
		return 3
	}
	ratio := health / maxHealth
	switch {
	case ratio > phase2Above:
		return 1
	case ratio > phase3Above:
		return 2
	}
	return 3
}

type Shield struct {
	Active    bool
	Health    float64
	Remaining time.Duration
}

type Rage struct {
	Active     bool
	Multiplier float64
	Remaining  time.Duration
}

// BossData is the boss payload.
type BossData struct {
	Health           float64
	MaxHealth        float64
	Phase            int
	Shield           Shield
	Rage             Rage
	AttackCooldown   time.Duration
	TeleportCooldown time.Duration
	SpeedMul         float64
	Personality      Personality
	Pattern          string // last pattern fired
	PhaseEntries     [4]int // how many times each phase's one-time effect ran

	lastPhase  int
	patternIdx int
	dir        float64
}

// NewBoss creates the boss at the top center of the canvas.
func NewBoss(cfg *Config, p Personality) *Entity {
	bc := cfg.Boss
	return &Entity{
		Kind:   KindBoss,
		Owner:  OwnerEnemy,
		Pos:    Vec{cfg.Width / 2, bc.Height + 20},
		Radius: math.Max(bc.Width, bc.Height) / 2,
		HalfW:  bc.Width / 2,
		HalfH:  bc.Height / 2,
		Boss: &BossData{
			Health:           bc.MaxHealth,
			MaxHealth:        bc.MaxHealth,
			Phase:            1,
			AttackCooldown:   bc.AttackCooldown,
			TeleportCooldown: bc.TeleportCooldown,
			SpeedMul:         1,
			Personality:      p,
			lastPhase:        1,
			dir:              1,
		},
	}
}

// HealthRatio returns health over max health.
func (b *BossData) HealthRatio() float64 {
	if b.MaxHealth <= 0 {
		return 0
	}
	return b.Health / b.MaxHealth
}

// syncBossPhase recomputes the phase and fires one-time transition effects
// for every boundary crossed since the last sync.
func (w *World) syncBossPhase(e *Entity) {
	b := e.Boss
	if b.Health < 0 {
		w.log.Warn("boss health below zero, clamping", "health", b.Health)
		b.Health = 0
	}
	b.Phase = PhaseFor(b.Health, b.MaxHealth)
	for b.lastPhase < b.Phase {
		b.lastPhase++
		w.enterBossPhase(e, b.lastPhase)
	}
}

// updateBoss syncs the phase, then moves and attacks.
func (w *World) updateBoss(e *Entity) {
	b := e.Boss
	w.syncBossPhase(e)

	if b.Shield.Active {
		b.Shield.Remaining -= w.dt
		if b.Shield.Remaining <= 0 {
			b.Shield = Shield{}
		}
	}
	if b.Rage.Active {
		b.Rage.Remaining -= w.dt
		if b.Rage.Remaining <= 0 {
			b.Rage = Rage{}
		}
	}

	e.Vel = Vec{b.dir * w.cfg.Boss.Speed * b.SpeedMul, 0}

	if b.Phase >= 3 {
		b.TeleportCooldown -= w.dt
		if b.TeleportCooldown <= 0 {
			b.TeleportCooldown = w.cfg.Boss.TeleportCooldown
			e.Pos.X = w.rng.Range(e.HalfW, w.cfg.Width-e.HalfW)
			w.bus.sound(SoundTeleport, e.Pos)
		}
	}

	cd := w.dt
	if b.Rage.Active && b.Rage.Multiplier > 0 {
		cd = time.Duration(float64(cd) * b.Rage.Multiplier)
	}
	b.AttackCooldown -= cd
	if b.AttackCooldown <= 0 {
		b.AttackCooldown = time.Duration(float64(w.cfg.Boss.AttackCooldown) / (1 + 0.25*float64(b.Phase-1)))
		w.bossAttack(e, w.nextPattern(e))
	}
}

// enterBossPhase applies a phase's one-time effects.
func (w *World) enterBossPhase(e *Entity, phase int) {
	b := e.Boss
	bc := w.cfg.Boss
	b.PhaseEntries[phase]++
	switch phase {
	case 2:
		b.SpeedMul = 1 + bc.Phase2Speed
		b.Shield = Shield{Active: true, Health: bc.ShieldHealth, Remaining: bc.ShieldDuration}
	case 3:
		b.SpeedMul = 1 + bc.Phase3Speed
		b.Rage = Rage{Active: true, Multiplier: bc.RageMultiplier, Remaining: bc.RageDuration}
	}
	w.log.Debug("boss phase change", "phase", phase, "health", b.Health, "tick", w.tick)
	w.bus.Publish(Effect{Kind: EffectBossPhaseChange, Pos: e.Pos, Source: e.ID, Value: phase})
	w.bus.sound(SoundBossPhaseChange, e.Pos)
	w.bus.Publish(Effect{Kind: EffectScreenShake, Pos: e.Pos, Amount: 8})
}

// damageBoss routes damage through the shield first; overflow reaches health.
func (w *World) damageBoss(e *Entity, amount float64) bool {
	b := e.Boss
	if !e.Alive || amount <= 0 {
		return false
	}
	if b.Shield.Active {
		if amount < b.Shield.Health {
			b.Shield.Health -= amount
			return false
		}
		amount -= b.Shield.Health
		b.Shield = Shield{}
		w.bus.sound(SoundShieldBreak, e.Pos)
	}
	b.Health -= amount
	if b.Health > 0 {
		w.syncBossPhase(e)
		return false
	}
	b.Health = 0
	b.Phase = PhaseFor(0, b.MaxHealth)
	e.Alive = false
	w.bossKilled(e)
	return true
}

// nextPattern prefers a fresh advisory answer and otherwise walks the
// personality's fallback table. A new request is issued for the next attack
// either way.
func (w *World) nextPattern(e *Entity) string {
	b := e.Boss
	pattern := ""
	if w.advisory != nil {
		if p, ok := w.advisory.Poll(w.clock); ok && knownPattern(p) {
			pattern = p
		}
	}
	if pattern == "" {
		table := w.cfg.Fallbacks[b.Personality.String()]
		if len(table) == 0 {
			table = defaultFallbackPatterns()[b.Personality.String()]
		}
		pattern = table[b.patternIdx%len(table)]
		b.patternIdx++
	}
	if w.advisory != nil {
		w.advisory.Request(w.clock, w.adviceRequest(e))
	}
	return pattern
}

func (w *World) adviceRequest(e *Entity) AdviceRequest {
	req := AdviceRequest{
		Personality: e.Boss.Personality.String(),
		Phase:       e.Boss.Phase,
		HealthRatio: e.Boss.HealthRatio(),
		BossX:       e.Pos.X,
		Invaders:    w.reg.Count(KindInvader),
		Tick:        w.tick,
	}
	if p, ok := w.Player(); ok {
		req.PlayerX = p.Pos.X
		req.PlayerLives = p.Player.Lives
	}
	return req
}

// bossAttack spawns the pattern's volley. Later phases add shots.
func (w *World) bossAttack(e *Entity, pattern string) {
	b := e.Boss
	b.Pattern = pattern
	extra := b.Phase - 1
	origin := e.Pos.Add(Vec{0, e.HalfH})
	speed := w.cfg.Projectile.EnemySpeed
	down := -up

	switch pattern {
	case PatternSpread:
		for _, a := range fanAngles(down, 1.0, 5+2*extra) {
			w.bossShot(origin, FromAngle(a, speed), 0)
		}
	case PatternAimed:
		aim := down
		if p, ok := w.Player(); ok {
			d := p.Pos.Sub(origin)
			aim = math.Atan2(d.Y, d.X)
		}
		for _, a := range fanAngles(aim, 0.15, 3+extra) {
			w.bossShot(origin, FromAngle(a, speed*1.2), 0)
		}
	case PatternBombRain:
		n := 3 + extra
		for i := 0; i < n; i++ {
			x := e.Pos.X - e.HalfW + e.HalfW*2*float64(i)/float64(max(n-1, 1))
			bomb := NewBomb(&w.cfg, Vec{x, origin.Y}, OwnerEnemy)
			bomb.Vel = Vec{0, 1}
			bomb.Bomb.ImpactTrigger = true
			bomb.Bomb.Damage = w.cfg.Boss.Damage
			if w.reg.Create(bomb) == NoID {
				w.log.Warn("registry full, dropping boss bomb", "tick", w.tick)
				return
			}
		}
	case PatternSpiral:
		n := 8 + 2*extra
		base := float64(b.patternIdx) * 0.35
		for i := 0; i < n; i++ {
			w.bossShot(e.Pos, FromAngle(base+2*math.Pi*float64(i)/float64(n), speed*0.8), 0)
		}
	case PatternHomingBarrage:
		for _, a := range fanAngles(down, 1.4, 3+extra) {
			w.bossShot(origin, FromAngle(a, speed*0.9), 0.06)
		}
	case PatternLaserSweep:
		n := 6 + 2*extra
		for i := 0; i < n; i++ {
			a := down - 0.8 + 1.6*float64(i)/float64(n-1)
			w.bossShot(origin.Add(FromAngle(a, float64(i)*4)), FromAngle(a, speed*1.75), 0)
		}
	default:
		w.log.Warn("unknown boss pattern, skipping attack", "pattern", pattern)
		return
	}
	w.bus.sound(SoundShoot, e.Pos)
}

func (w *World) bossShot(pos, vel Vec, homing float64) {
	proj := NewProjectile(&w.cfg, KindEnemyProjectile, pos, vel)
	proj.Projectile.Damage = w.cfg.Boss.Damage
	proj.Projectile.HomingStrength = homing
	if w.reg.Create(proj) == NoID {
		w.log.Warn("registry full, dropping boss projectile", "tick", w.tick)
	}
}
