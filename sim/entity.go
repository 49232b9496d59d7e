package sim

import "time"

// Kind is the closed set of simulated entity kinds.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindInvader
	KindBoss
	KindPlayerProjectile
	KindEnemyProjectile
	KindBomb
	KindPowerUp
	KindParticle
	kindCount
)

var kindNames = [kindCount]string{
	"player", "invader", "boss", "player_projectile", "enemy_projectile", "bomb", "power_up", "particle",
}

func (k Kind) String() string {
	if k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// Owner decides which side an entity damages.
type Owner uint8

const (
	OwnerNeutral Owner = iota
	OwnerPlayer
	OwnerEnemy
)

func (o Owner) String() string {
	switch o {
	case OwnerPlayer:
		return "player"
	case OwnerEnemy:
		return "enemy"
	default:
		return "neutral"
	}
}

// hostile reports whether damage from attacker applies to a victim owned by v.
// Neutral damage applies to everyone.
func (o Owner) hostile(v Owner) bool {
	return o == OwnerNeutral || o != v
}

// ID identifies an entity. Ids are stable within a tick and may be recycled
// after the end-of-tick sweep.
type ID uint32

// NoID is never assigned.
const NoID ID = 0

// Entity is the shared record for every kind. Exactly one payload pointer,
// the one matching Kind, is non-nil.
type Entity struct {
	ID     ID
	Kind   Kind
	Owner  Owner
	Pos    Vec
	Vel    Vec
	Accel  Vec     // constant acceleration per reference tick
	Drag   float64 // velocity multiplier per reference tick; 0 disables
	Alive  bool
	Age    time.Duration
	MaxAge time.Duration // 0 means no age limit
	Radius float64
	HalfW  float64
	HalfH  float64

	Bounces     int
	MaxBounces  int
	Restitution float64

	Player     *PlayerData
	Invader    *InvaderData
	Boss       *BossData
	Projectile *ProjectileData
	Bomb       *BombData
	PowerUp    *PowerUpData
	Particle   *ParticleData
}

// Min returns the top-left corner of the entity's box.
func (e *Entity) Min() Vec { return Vec{e.Pos.X - e.HalfW, e.Pos.Y - e.HalfH} }

// Max returns the bottom-right corner of the entity's box.
func (e *Entity) Max() Vec { return Vec{e.Pos.X + e.HalfW, e.Pos.Y + e.HalfH} }

// Extent is the larger of the radius and the box half extents, used for
// broad-phase insertion.
func (e *Entity) Extent() float64 {
	r := e.Radius
	if e.HalfW > r {
		r = e.HalfW
	}
	if e.HalfH > r {
		r = e.HalfH
	}
	return r
}

// VisualState is the phase tag the rendering collaborator selects frames by.
func (e *Entity) VisualState() string {
	switch e.Kind {
	case KindBomb:
		return e.Bomb.Phase.String()
	case KindBoss:
		switch {
		case e.Boss.Shield.Active:
			return "shielded"
		case e.Boss.Rage.Active:
			return "raging"
		}
		return bossPhaseTags[e.Boss.Phase]
	case KindInvader:
		if e.Invader.hasEffect(StatusFrozen) {
			return "frozen"
		}
		if e.Invader.Phased {
			return "phased"
		}
		return e.Invader.Kind.String()
	case KindPlayer:
		if e.Player.invulnerable {
			return "invulnerable"
		}
		return e.Player.Weapon
	case KindPlayerProjectile, KindEnemyProjectile:
		if e.Projectile.HomingStrength > 0 {
			return "homing"
		}
		if e.Projectile.Piercing {
			return "piercing"
		}
		return "normal"
	case KindPowerUp:
		return e.PowerUp.Effect.String()
	}
	return ""
}

var bossPhaseTags = [4]string{"", "phase1", "phase2", "phase3"}
