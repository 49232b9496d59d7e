package sim

import "time"

// Input is the per-tick intent snapshot delivered by the input collaborator.
type Input struct {
	MoveLeft  bool
	MoveRight bool
	Fire      bool
}

// ActivePowerUp is a timed power-up currently applied to the player.
type ActivePowerUp struct {
	Effect    PowerUpEffect
	Name      string
	Remaining time.Duration
}

// PlayerData is the player payload.
type PlayerData struct {
	Lives             int
	Health            float64
	MaxHealth         float64
	Weapon            string
	Active            *ActivePowerUp
	InvulnerableUntil time.Duration
	FireCooldown      time.Duration
	Shield            float64
	FireRateMul       float64
	DamageMul         float64
	ShotsFired        int
	ShotsHit          int
	LivesLost         int

	invulnerable bool
}

// NewPlayer creates the player centered on the bottom of the canvas.
func NewPlayer(cfg *Config) *Entity {
	return &Entity{
		Kind:   KindPlayer,
		Owner:  OwnerPlayer,
		Pos:    Vec{cfg.Width / 2, cfg.Height - cfg.Player.BottomMargin},
		Radius: cfg.Player.Radius,
		HalfW:  cfg.Player.Radius,
		HalfH:  cfg.Player.Radius,
		Player: &PlayerData{
			Lives:       cfg.Player.Lives,
			Health:      cfg.Player.Health,
			MaxHealth:   cfg.Player.Health,
			Weapon:      BaseWeapon,
			FireRateMul: 1,
			DamageMul:   1,
		},
	}
}

// Accuracy returns hits per shot in [0, 1].
func (p *PlayerData) Accuracy() float64 {
	if p.ShotsFired == 0 {
		return 0
	}
	return Clamp(float64(p.ShotsHit)/float64(p.ShotsFired), 0, 1)
}

// absorb applies shield absorption and returns the remaining damage.
func (p *PlayerData) absorb(dmg float64) float64 {
	if p.Shield <= 0 {
		return dmg
	}
	if dmg <= p.Shield {
		p.Shield -= dmg
		return 0
	}
	remaining := dmg - p.Shield
	p.Shield = 0
	return remaining
}

// applyInput converts intents into horizontal velocity.
func (w *World) applyInput(e *Entity) {
	e.Vel = Vec{}
	if w.input.MoveLeft {
		e.Vel.X -= w.cfg.Player.Speed
	}
	if w.input.MoveRight {
		e.Vel.X += w.cfg.Player.Speed
	}
}

// updatePlayer ticks timers and handles firing.
func (w *World) updatePlayer(e *Entity) {
	p := e.Player
	p.invulnerable = w.clock < p.InvulnerableUntil
	if p.FireCooldown > 0 {
		p.FireCooldown -= w.dt
	}
	if a := p.Active; a != nil {
		a.Remaining -= w.dt
		if a.Remaining <= 0 {
			w.expirePowerUp(p)
		}
	}
	if w.input.Fire && p.FireCooldown <= 0 {
		w.firePlayer(e)
	}
}

func (w *World) expirePowerUp(p *PlayerData) {
	switch p.Active.Effect {
	case EffectWeaponChange:
		p.Weapon = BaseWeapon
	case EffectStatBoost:
		p.FireRateMul = 1
	}
	p.Active = nil
}

// firePlayer spawns the current weapon's volley.
func (w *World) firePlayer(e *Entity) {
	p := e.Player
	def := w.cfg.weapon(p.Weapon)
	cd := def.FireCD
	if p.FireRateMul > 0 {
		cd = time.Duration(float64(cd) / p.FireRateMul)
	}
	p.FireCooldown = cd

	if def.DropsBomb {
		b := NewBomb(&w.cfg, e.Pos.Add(Vec{0, -e.Radius}), OwnerPlayer)
		b.Vel = Vec{0, -3}
		b.Accel = Vec{}
		b.Bomb.Damage = w.cfg.Bomb.Damage * def.Damage * p.DamageMul / 3
		b.Bomb.ImpactTrigger = true
		if w.reg.Create(b) == NoID {
			w.log.Warn("registry full, dropping player bomb", "tick", w.tick)
			return
		}
		p.ShotsFired++
		w.bus.sound(SoundShoot, e.Pos)
		return
	}

	for _, angle := range fanAngles(up, def.Spread, def.Count) {
		proj := NewProjectile(&w.cfg, KindPlayerProjectile, e.Pos.Add(Vec{0, -e.Radius}), FromAngle(angle, def.Speed))
		pd := proj.Projectile
		pd.Damage = def.Damage * p.DamageMul
		pd.Piercing = def.Piercing
		pd.MaxPiercing = w.cfg.Projectile.MaxPiercing
		pd.HomingStrength = def.Homing
		pd.MaxSpeed = def.Speed
		pd.ExplosionRadius = def.ExplosionRadius
		pd.Split = def.Split
		pd.Status = def.Status
		pd.StatusDuration = def.StatusDuration
		proj.MaxBounces = def.Bounces
		if w.reg.Create(proj) == NoID {
			w.log.Warn("registry full, dropping player projectile", "tick", w.tick)
			continue
		}
		p.ShotsFired++
	}
	w.bus.sound(SoundShoot, e.Pos)
}

// damagePlayer applies damage to the player. It returns true when the hit
// cost a life.
func (w *World) damagePlayer(e *Entity, amount float64) bool {
	p := e.Player
	if !e.Alive || w.clock < p.InvulnerableUntil || amount <= 0 {
		return false
	}
	amount = p.absorb(amount)
	if amount == 0 {
		w.bus.sound(SoundHit, e.Pos)
		return false
	}
	p.Health -= amount
	w.bus.Publish(Effect{Kind: EffectPlayerHit, Pos: e.Pos, Amount: amount, Target: e.ID})
	w.bus.Publish(Effect{Kind: EffectScreenShake, Pos: e.Pos, Amount: 4})
	if p.Health > 0 {
		w.bus.sound(SoundHit, e.Pos)
		return false
	}
	w.loseLife(e)
	return true
}

// loseLife consumes one life; the last one ends the run.
func (w *World) loseLife(e *Entity) {
	p := e.Player
	p.Lives--
	p.LivesLost++
	w.bus.sound(SoundExplode, e.Pos)
	w.bus.Publish(Effect{Kind: EffectFlash, Pos: e.Pos, Amount: 1})
	if p.Lives <= 0 {
		p.Lives = 0
		p.Health = 0
		e.Alive = false
		return
	}
	p.Health = p.MaxHealth
	p.Shield = 0
	p.InvulnerableUntil = w.clock + w.cfg.Player.InvulnerableFor
	p.invulnerable = true
}
