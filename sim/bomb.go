package sim

import "time"

// BombPhase is the bomb lifecycle. Phases only move forward; Exploded and
// Defused are terminal.
type BombPhase uint8

const (
	BombFalling BombPhase = iota
	BombArmed
	BombWarning
	BombExploding
	BombExploded
	BombDefused
)

var bombPhaseNames = [...]string{"falling", "armed", "warning", "exploding", "exploded", "defused"}

func (p BombPhase) String() string {
	if int(p) >= len(bombPhaseNames) {
		return "unknown"
	}
	return bombPhaseNames[p]
}

// Terminal reports whether no further transition is possible.
func (p BombPhase) Terminal() bool {
	return p == BombExploded || p == BombDefused
}

// BombData is the bomb payload.
type BombData struct {
	Phase             BombPhase
	ArmingDelay       time.Duration
	Fuse              time.Duration
	Warning           time.Duration
	ExplosionDuration time.Duration
	ExplosionRadius   float64
	Damage            float64
	ChainReaction     bool
	ImpactTrigger     bool
	ProximityRadius   float64

	ExplodedAt     time.Duration // age when Exploding began
	Impacted       bool
	forced         bool
	chainScheduled bool
}

// NewBomb creates a falling bomb with the configured timings.
func NewBomb(cfg *Config, pos Vec, owner Owner) *Entity {
	bc := cfg.Bomb
	return &Entity{
		Kind:        KindBomb,
		Owner:       owner,
		Pos:         pos,
		Accel:       Vec{0, bc.Gravity},
		Radius:      bc.Radius,
		HalfW:       bc.Radius,
		HalfH:       bc.Radius,
		MaxBounces:  bc.MaxBounces,
		Restitution: bc.Restitution,
		Bomb: &BombData{
			ArmingDelay:       bc.ArmingDelay,
			Fuse:              bc.Fuse,
			Warning:           bc.Warning,
			ExplosionDuration: bc.ExplosionDuration,
			ExplosionRadius:   bc.ExplosionRadius,
			Damage:            bc.Damage,
			ChainReaction:     true,
			ProximityRadius:   bc.ProximityRadius,
		},
	}
}

// TimedPhase is the phase the fuse alone dictates at the given age.
func (b *BombData) TimedPhase(age time.Duration) BombPhase {
	switch {
	case age >= b.Fuse:
		return BombExploding
	case age >= b.Fuse-b.Warning && age >= b.ArmingDelay:
		return BombWarning
	case age >= b.ArmingDelay:
		return BombArmed
	}
	return BombFalling
}

// updateBomb advances the bomb one tick. Intermediate phases are entered in
// order even when a single tick skips past several thresholds.
func (w *World) updateBomb(e *Entity) {
	b := e.Bomb
	if b.Phase.Terminal() {
		e.Alive = false
		return
	}
	target := b.TimedPhase(e.Age)
	if b.Phase >= BombArmed && b.Phase < BombExploding && (b.Impacted || w.playerWithin(e, b.ProximityRadius)) {
		b.forced = true
	}
	if b.forced {
		target = BombExploding
	}
	for b.Phase < target && b.Phase < BombExploding {
		w.enterBombPhase(e, b.Phase+1)
	}
	if b.Phase == BombExploding && e.Age-b.ExplodedAt >= b.ExplosionDuration {
		w.enterBombPhase(e, BombExploded)
	}
}

// playerWithin reports a hostile player inside radius. radius <= 0 disables
// the proximity trigger.
func (w *World) playerWithin(e *Entity, radius float64) bool {
	if radius <= 0 {
		return false
	}
	for _, p := range w.reg.Iterate(KindPlayer) {
		if p.Alive && e.Owner.hostile(p.Owner) && DistanceSq(e.Pos, p.Pos) <= radius*radius {
			return true
		}
	}
	return false
}

func (w *World) enterBombPhase(e *Entity, next BombPhase) {
	b := e.Bomb
	if next <= b.Phase || b.Phase.Terminal() {
		return
	}
	b.Phase = next
	switch next {
	case BombWarning:
		w.bus.sound(SoundWarning, e.Pos)
	case BombExploding:
		b.ExplodedAt = e.Age
		if !b.forced && e.Age > b.Fuse {
			b.ExplodedAt = b.Fuse
		}
		e.Vel = Vec{}
		e.Accel = Vec{}
		w.bus.Publish(Effect{
			Kind:   EffectAreaDamage,
			Pos:    e.Pos,
			Amount: b.Damage,
			Radius: b.ExplosionRadius,
			Owner:  e.Owner,
			Source: e.ID,
		})
		w.bus.sound(SoundExplode, e.Pos)
		w.bus.Publish(Effect{Kind: EffectScreenShake, Pos: e.Pos, Amount: b.Damage / 10})
		w.spawnParticles(e.Pos)
		if b.ChainReaction {
			w.scheduleChain(e)
		}
	case BombExploded:
		e.Alive = false
	}
}

// scheduleChain queues detonation of nearby bombs after a jittered delay
// instead of detonating them in this tick.
func (w *World) scheduleChain(src *Entity) {
	r := src.Bomb.ExplosionRadius * w.cfg.Bomb.ChainRadiusFactor
	for _, other := range w.reg.Iterate(KindBomb) {
		if other == src || !other.Alive {
			continue
		}
		ob := other.Bomb
		if ob.Phase >= BombExploding || ob.chainScheduled {
			continue
		}
		if DistanceSq(src.Pos, other.Pos) > r*r {
			continue
		}
		ob.chainScheduled = true
		jitter := time.Duration(w.rng.Range(float64(w.cfg.Bomb.ChainJitterMin), float64(w.cfg.Bomb.ChainJitterMax)))
		w.sched.Schedule(w.clock+jitter, ScheduleDetonate, other.ID)
		w.bus.Publish(Effect{Kind: EffectChainReaction, Pos: other.Pos, Source: src.ID, Target: other.ID})
	}
}

// detonate handles a due chain event. Bombs destroyed or defused in the
// meantime are skipped.
func (w *World) detonate(id ID) {
	e, ok := w.reg.Find(id)
	if !ok || e.Bomb == nil || e.Bomb.Phase >= BombExploding {
		return
	}
	e.Bomb.forced = true
}

// Defuse moves a bomb that has not started exploding straight to Defused.
// It reports whether the bomb was defused.
func (w *World) Defuse(id ID) bool {
	e, ok := w.reg.Find(id)
	if !ok || e.Bomb == nil || e.Bomb.Phase >= BombExploding {
		return false
	}
	e.Bomb.Phase = BombDefused
	e.Alive = false
	e.Vel = Vec{}
	w.bus.Publish(Effect{Kind: EffectBombDefused, Pos: e.Pos, Source: e.ID})
	return true
}
