package sim

import "time"

// PowerUpEffect is what collecting a power-up does.
type PowerUpEffect uint8

const (
	EffectWeaponChange PowerUpEffect = iota
	EffectStatBoost
	EffectShield
	EffectInstant
	EffectPermanent
	powerUpEffectCount
)

var powerUpEffectNames = [powerUpEffectCount]string{"weapon_change", "stat_boost", "shield", "instant", "permanent"}

func (p PowerUpEffect) String() string {
	if p >= powerUpEffectCount {
		return "unknown"
	}
	return powerUpEffectNames[p]
}

// Rarity scales a power-up's duration and value.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	rarityCount
)

var (
	rarityNames   = [rarityCount]string{"common", "uncommon", "rare", "epic", "legendary"}
	rarityScale   = [rarityCount]float64{1, 1.25, 1.5, 2, 3}
	rarityWeights = [rarityCount]float64{60, 25, 10, 4, 1}
)

func (r Rarity) String() string {
	if r >= rarityCount {
		return "unknown"
	}
	return rarityNames[r]
}

// Scale is the duration/value multiplier for the rarity.
func (r Rarity) Scale() float64 {
	if r >= rarityCount {
		return 1
	}
	return rarityScale[r]
}

// Instant power-up names.
const (
	InstantHeal  = "heal"
	InstantLife  = "extra_life"
	InstantNova  = "nova"
	StatFireRate = "fire_rate"
	PermDamage   = "damage"
)

// PowerUpData is the power-up payload.
type PowerUpData struct {
	Effect        PowerUpEffect
	Rarity        Rarity
	Name          string // weapon, stat or instant name
	MagneticRange float64
}

// NewPowerUp creates a falling power-up. Lifetime is carried by MaxAge.
func NewPowerUp(cfg *Config, pos Vec, effect PowerUpEffect, rarity Rarity, name string) *Entity {
	pc := cfg.PowerUp
	return &Entity{
		Kind:   KindPowerUp,
		Owner:  OwnerNeutral,
		Pos:    pos,
		Vel:    Vec{0, pc.FallSpeed},
		Radius: pc.Radius,
		HalfW:  pc.Radius,
		HalfH:  pc.Radius,
		MaxAge: pc.Lifetime,
		PowerUp: &PowerUpData{
			Effect:        effect,
			Rarity:        rarity,
			Name:          name,
			MagneticRange: pc.MagneticRange,
		},
	}
}

var (
	dropWeapons  = []string{"double", "triple", "spread", "laser", "homing", "explosive", "splitter", "bouncer", "ice", "fire", "bomb"}
	dropInstants = []string{InstantHeal, InstantLife, InstantNova}
)

// rollRarity picks a rarity by weight.
func (r *rng) rollRarity() Rarity {
	total := 0.0
	for _, w := range rarityWeights {
		total += w
	}
	x := r.Float() * total
	for i, w := range rarityWeights {
		if x < w {
			return Rarity(i)
		}
		x -= w
	}
	return RarityCommon
}

// spawnPowerUp handles a spawn_power_up intent emitted by a kill.
func (w *World) spawnPowerUp(fx Effect) {
	rarity := w.rng.rollRarity()
	var effect PowerUpEffect
	var name string
	switch roll := w.rng.Float(); {
	case roll < 0.45:
		effect, name = EffectWeaponChange, dropWeapons[w.rng.Intn(len(dropWeapons))]
	case roll < 0.65:
		effect, name = EffectStatBoost, StatFireRate
	case roll < 0.8:
		effect, name = EffectShield, EffectShield.String()
	case roll < 0.95:
		effect, name = EffectInstant, dropInstants[w.rng.Intn(len(dropInstants))]
	default:
		effect, name = EffectPermanent, PermDamage
	}
	if w.reg.Create(NewPowerUp(&w.cfg, fx.Pos, effect, rarity, name)) == NoID {
		w.log.Warn("registry full, dropping power-up", "tick", w.tick)
	}
}

// updatePowerUp pulls the power-up toward a player inside its magnetic range.
func (w *World) updatePowerUp(e *Entity) {
	p, ok := w.Player()
	if !ok {
		return
	}
	d := p.Pos.Sub(e.Pos)
	r := e.PowerUp.MagneticRange
	if d.LenSq() > r*r {
		e.Vel = Vec{0, w.cfg.PowerUp.FallSpeed}
		return
	}
	pull := d.Norm().Scale(w.cfg.PowerUp.MagneticPull * w.dtf)
	e.Vel = e.Vel.Add(pull).ClampLen(w.cfg.Player.Speed * 1.5)
}

// collectPowerUp applies a power-up to the player and consumes it.
func (w *World) collectPowerUp(player, pu *Entity) {
	if !pu.Alive || !player.Alive {
		return
	}
	pu.Alive = false
	p := player.Player
	d := pu.PowerUp
	scale := d.Rarity.Scale()
	dur := time.Duration(float64(w.cfg.PowerUp.BaseDuration) * scale)

	switch d.Effect {
	case EffectWeaponChange:
		if p.Active != nil && p.Active.Effect != EffectWeaponChange {
			w.expirePowerUp(p)
		}
		p.Weapon = d.Name
		p.Active = &ActivePowerUp{Effect: d.Effect, Name: d.Name, Remaining: dur}
	case EffectStatBoost:
		if p.Active != nil && p.Active.Effect != EffectStatBoost {
			w.expirePowerUp(p)
		}
		p.FireRateMul = 1 + 0.5*scale
		p.Active = &ActivePowerUp{Effect: d.Effect, Name: d.Name, Remaining: dur}
	case EffectShield:
		p.Shield += w.cfg.PowerUp.ShieldHealth * scale
	case EffectInstant:
		switch d.Name {
		case InstantHeal:
			p.Health = min(p.MaxHealth, p.Health+p.MaxHealth*0.25*scale)
		case InstantLife:
			p.Lives++
		case InstantNova:
			w.bus.Publish(Effect{
				Kind:   EffectAreaDamage,
				Pos:    player.Pos,
				Amount: scale,
				Radius: w.cfg.Width + w.cfg.Height,
				Owner:  OwnerPlayer,
				Source: pu.ID,
			})
			w.bus.Publish(Effect{Kind: EffectFlash, Pos: player.Pos, Amount: 1})
		}
	case EffectPermanent:
		p.DamageMul += 0.1 * scale
	}

	w.addScore(pu.Pos, int(float64(w.cfg.PowerUp.Score)*scale), pu.ID)
	w.bus.sound(SoundPowerUp, pu.Pos)
}
