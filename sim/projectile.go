package sim

import "time"

// ProjectileData is the payload shared by player and enemy projectiles.
type ProjectileData struct {
	Damage          float64
	Piercing        bool
	MaxPiercing     int
	Pierced         map[ID]struct{} // distinct victims already damaged
	HomingStrength  float64         // 0 = no homing
	MaxSpeed        float64
	Target          ID // weak reference, re-validated every tick
	SearchRadius    float64
	ExplosionRadius float64
	Split           int // sub-projectiles spawned on first hit
	Status          string
	StatusDuration  time.Duration
	Consumed        bool
}

// NewProjectile creates a projectile of kind KindPlayerProjectile or
// KindEnemyProjectile.
func NewProjectile(cfg *Config, kind Kind, pos, vel Vec) *Entity {
	owner := OwnerPlayer
	if kind == KindEnemyProjectile {
		owner = OwnerEnemy
	}
	return &Entity{
		Kind:        kind,
		Owner:       owner,
		Pos:         pos,
		Vel:         vel,
		Radius:      cfg.Projectile.Radius,
		HalfW:       cfg.Projectile.Radius,
		HalfH:       cfg.Projectile.Radius,
		MaxAge:      cfg.Projectile.MaxAge,
		Restitution: cfg.Projectile.Restitution,
		Projectile: &ProjectileData{
			Damage:       1,
			MaxPiercing:  cfg.Projectile.MaxPiercing,
			MaxSpeed:     vel.Len(),
			SearchRadius: cfg.Projectile.SearchRadius,
		},
	}
}

// alreadyHit reports whether victim was damaged by this projectile before.
func (p *ProjectileData) alreadyHit(victim ID) bool {
	_, ok := p.Pierced[victim]
	return ok
}

// recordHit notes a resolved hit and reports whether the projectile is now
// consumed. A non-piercing projectile is consumed by its first victim; a
// piercing one by its MaxPiercing-th distinct victim.
func (p *ProjectileData) recordHit(victim ID) bool {
	if p.Pierced == nil {
		p.Pierced = make(map[ID]struct{}, 1)
	}
	p.Pierced[victim] = struct{}{}
	if !p.Piercing || len(p.Pierced) >= max(p.MaxPiercing, 1) {
		p.Consumed = true
	}
	return p.Consumed
}

// victimKinds lists what a projectile kind may home onto.
func victimKinds(k Kind) []Kind {
	if k == KindEnemyProjectile {
		return []Kind{KindPlayer}
	}
	return []Kind{KindInvader, KindBoss}
}

// steerProjectile runs homing: keep or re-acquire a target, then turn the
// velocity toward it by HomingStrength, clamped to MaxSpeed.
func (w *World) steerProjectile(e *Entity) {
	p := e.Projectile
	if p.HomingStrength <= 0 {
		return
	}
	target, ok := w.validTarget(e, p.Target)
	if !ok {
		p.Target = w.nearestTarget(e)
		target, ok = w.validTarget(e, p.Target)
	}
	if !ok {
		// no target: continue straight
		return
	}
	desired := target.Pos.Sub(e.Pos).Norm().Scale(p.MaxSpeed)
	e.Vel = e.Vel.Add(desired.Sub(e.Vel).Scale(Clamp(p.HomingStrength*w.dtf, 0, 1)))
	e.Vel = e.Vel.ClampLen(p.MaxSpeed)
}

// validTarget resolves the weak target id. Out-of-range, intangible or
// already-pierced targets are treated as invalid.
func (w *World) validTarget(e *Entity, id ID) (*Entity, bool) {
	if id == NoID {
		return nil, false
	}
	t, ok := w.reg.Find(id)
	if !ok || !e.Owner.hostile(t.Owner) || !targetable(t) || e.Projectile.alreadyHit(id) {
		return nil, false
	}
	if DistanceSq(e.Pos, t.Pos) > e.Projectile.SearchRadius*e.Projectile.SearchRadius {
		return nil, false
	}
	return t, true
}

// nearestTarget searches within SearchRadius; ties go to iteration order.
func (w *World) nearestTarget(e *Entity) ID {
	best := NoID
	bestD := e.Projectile.SearchRadius * e.Projectile.SearchRadius
	for _, k := range victimKinds(e.Kind) {
		for _, t := range w.reg.Iterate(k) {
			if !t.Alive || !targetable(t) || e.Projectile.alreadyHit(t.ID) {
				continue
			}
			if d := DistanceSq(e.Pos, t.Pos); d <= bestD {
				if d < bestD || best == NoID {
					best, bestD = t.ID, d
				}
			}
		}
	}
	return best
}

// targetable excludes entities that cannot currently be hit.
func targetable(e *Entity) bool {
	if e.Kind == KindInvader && e.Invader.Phased {
		return false
	}
	return e.Alive
}

// spawnSplit fans Value sub-projectiles out of an intent emitted on first hit.
// Children inherit the parent's pierced set so they skip the victim that
// triggered the split.
func (w *World) spawnSplit(fx Effect) {
	parent, ok := w.reg.byID[fx.Source]
	if !ok || parent.Projectile == nil {
		return
	}
	speed := parent.Projectile.MaxSpeed
	heading := up
	if parent.Kind == KindEnemyProjectile {
		heading = -up
	}
	for _, angle := range fanAngles(heading, 1.2, fx.Value) {
		child := NewProjectile(&w.cfg, parent.Kind, fx.Pos, FromAngle(angle, speed))
		child.Projectile.Damage = parent.Projectile.Damage * 0.5
		child.Projectile.Pierced = map[ID]struct{}{fx.Target: {}}
		if w.reg.Create(child) == NoID {
			w.log.Warn("registry full, dropping split projectile", "tick", w.tick)
			return
		}
	}
}
