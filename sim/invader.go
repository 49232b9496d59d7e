package sim

import (
	"math"
	"time"
)

// InvaderKind selects the stat row an invader is built from.
type InvaderKind uint8

const (
	InvaderBasic InvaderKind = iota
	InvaderFast
	InvaderArmored
	InvaderQuantum
	InvaderSupreme
	invaderKindCount
)

var invaderKindNames = [invaderKindCount]string{"basic", "fast", "armored", "quantum", "supreme"}

func (k InvaderKind) String() string {
	if k >= invaderKindCount {
		return "unknown"
	}
	return invaderKindNames[k]
}

// ParseInvaderKind maps a level-file name to a kind.
func ParseInvaderKind(s string) (InvaderKind, bool) {
	for i, name := range invaderKindNames {
		if name == s {
			return InvaderKind(i), true
		}
	}
	return InvaderBasic, false
}

// Behavior is the firing and movement style of an invader.
type Behavior uint8

const (
	BehaviorSimple Behavior = iota
	BehaviorAggressive
	BehaviorDefensive
	BehaviorUnpredictable
	BehaviorTactical
	behaviorCount
)

var behaviorNames = [behaviorCount]string{"simple", "aggressive", "defensive", "unpredictable", "tactical"}

func (b Behavior) String() string {
	if b >= behaviorCount {
		return "unknown"
	}
	return behaviorNames[b]
}

// ParseBehavior maps a level-file name to a behavior.
func ParseBehavior(s string) (Behavior, bool) {
	for i, name := range behaviorNames {
		if name == s {
			return Behavior(i), true
		}
	}
	return BehaviorSimple, false
}

// Status effect names.
const (
	StatusFrozen  = "frozen"
	StatusBurning = "burning"
	StatusSlowed  = "slowed"
	StatusMarked  = "marked"
)

const (
	burnDamagePerSecond = 1.0
	markedDamageMul     = 1.5
	quantumCycle        = 2500 * time.Millisecond
	quantumPhasedFor    = 500 * time.Millisecond
	defensiveWindow     = 60.0
	supremeBombEvery    = 3
)

// StatusEffect is one entry of an invader's status set.
type StatusEffect struct {
	Name      string
	Remaining time.Duration
}

// Slot places an invader inside its wave's formation.
type Slot struct {
	Index int
	Row   int
	Col   int
}

// InvaderData is the invader payload.
type InvaderData struct {
	Kind         InvaderKind
	Behavior     Behavior
	Health       float64
	MaxHealth    float64
	Armor        float64
	Score        int
	DropChance   float64
	FireRate     float64 // shots per second before status modifiers
	Slot         Slot
	Status       []StatusEffect
	Phased       bool
	FireCooldown time.Duration

	// Local is the invader's own behavior clock. It stops while frozen
	// and runs at half speed while slowed.
	Local time.Duration
	shots int
}

// NewInvader builds an invader of kind k for the given slot.
func NewInvader(cfg *Config, k InvaderKind, b Behavior, slot Slot) *Entity {
	st := cfg.stats(k)
	return &Entity{
		Kind:   KindInvader,
		Owner:  OwnerEnemy,
		Radius: cfg.Invader.Radius,
		HalfW:  cfg.Invader.Radius,
		HalfH:  cfg.Invader.Radius,
		Invader: &InvaderData{
			Kind:       k,
			Behavior:   b,
			Health:     st.Health,
			MaxHealth:  st.Health,
			Armor:      Clamp(st.Armor, 0, 0.9),
			Score:      st.Score,
			DropChance: st.DropChance,
			FireRate:   cfg.Invader.FirePerSecond * st.FireRate,
			Slot:       slot,
		},
	}
}

func (d *InvaderData) hasEffect(name string) bool {
	for _, s := range d.Status {
		if s.Name == name {
			return true
		}
	}
	return false
}

// applyStatus adds name to the status set or extends the existing entry.
func (d *InvaderData) applyStatus(name string, dur time.Duration) {
	if name == "" || dur <= 0 {
		return
	}
	for i := range d.Status {
		if d.Status[i].Name == name {
			d.Status[i].Remaining = max(d.Status[i].Remaining, dur)
			return
		}
	}
	d.Status = append(d.Status, StatusEffect{Name: name, Remaining: dur})
}

// tickStatus counts statuses down and drops expired ones.
func (d *InvaderData) tickStatus(dt time.Duration) {
	kept := d.Status[:0]
	for _, s := range d.Status {
		s.Remaining -= dt
		if s.Remaining > 0 {
			kept = append(kept, s)
		}
	}
	d.Status = kept
}

// timeScale is how fast the behavior clock runs under current statuses.
func (d *InvaderData) timeScale() float64 {
	switch {
	case d.hasEffect(StatusFrozen):
		return 0
	case d.hasEffect(StatusSlowed):
		return 0.5
	}
	return 1
}

// behaviorOffset is the analytic displacement from the formation slot.
func (d *InvaderData) behaviorOffset() Vec {
	t := d.Local.Seconds()
	phase := float64(d.Slot.Index)
	switch d.Behavior {
	case BehaviorUnpredictable:
		return Vec{12 * math.Sin(t*3+phase), 6 * math.Cos(t*2+phase)}
	case BehaviorAggressive:
		return Vec{0, 8 * math.Abs(math.Sin(t*1.5+phase))}
	}
	return Vec{}
}

// updateInvader runs the invader's timers and firing. Position is owned by
// the formation and set by the motion pass.
func (w *World) updateInvader(e *Entity) {
	d := e.Invader
	if d.hasEffect(StatusBurning) {
		w.takeDamage(e, burnDamagePerSecond*w.dt.Seconds(), NoID, OwnerPlayer)
		if !e.Alive {
			return
		}
	}
	d.tickStatus(w.dt)
	scale := d.timeScale()
	d.Local += time.Duration(float64(w.dt) * scale)

	if d.Kind == InvaderQuantum {
		d.Phased = d.Local%quantumCycle >= quantumCycle-quantumPhasedFor
	}
	if scale == 0 || d.Phased || d.FireRate <= 0 {
		return
	}
	d.FireCooldown -= time.Duration(float64(w.dt) * scale)
	if d.FireCooldown > 0 {
		return
	}
	d.FireCooldown = w.invaderFireInterval(d)
	w.fireInvader(e)
}

// invaderFireInterval randomizes the gap between shots around the mean rate.
func (w *World) invaderFireInterval(d *InvaderData) time.Duration {
	rate := d.FireRate * w.director.fireMul
	switch d.Behavior {
	case BehaviorAggressive:
		rate *= 1.5
	case BehaviorDefensive:
		rate *= 0.8
	}
	if rate <= 0 {
		return time.Hour
	}
	mean := float64(time.Second) / rate
	return time.Duration(mean * w.rng.Range(0.5, 1.5))
}

// fireInvader shoots according to behavior. Defensive invaders hold fire
// unless the player is roughly below them.
func (w *World) fireInvader(e *Entity) {
	d := e.Invader
	player, hasPlayer := w.Player()
	origin := e.Pos.Add(Vec{0, e.Radius})

	d.shots++
	if d.Kind == InvaderSupreme && d.shots%supremeBombEvery == 0 {
		b := NewBomb(&w.cfg, origin, OwnerEnemy)
		b.Vel = Vec{0, 1}
		b.Bomb.ImpactTrigger = true
		if w.reg.Create(b) == NoID {
			w.log.Warn("registry full, dropping invader bomb", "tick", w.tick)
		}
		return
	}

	speed := w.cfg.Projectile.EnemySpeed
	vel := Vec{0, speed}
	switch d.Behavior {
	case BehaviorAggressive:
		if hasPlayer {
			vel = player.Pos.Sub(origin).Norm().Scale(speed)
		}
	case BehaviorDefensive:
		if !hasPlayer || math.Abs(player.Pos.X-e.Pos.X) > defensiveWindow {
			return
		}
	case BehaviorUnpredictable:
		vel = FromAngle(-up+w.rng.Range(-0.5, 0.5), speed)
	case BehaviorTactical:
		if hasPlayer {
			// lead the target: aim where the player will be when the shot arrives
			dist := Distance(origin, player.Pos)
			timeToHit := dist / speed
			lead := player.Pos.Add(player.Vel.Scale(timeToHit))
			vel = lead.Sub(origin).Norm().Scale(speed)
		}
	}
	if vel.Y <= 0 {
		vel = Vec{vel.X, speed * 0.25}.Norm().Scale(speed)
	}
	proj := NewProjectile(&w.cfg, KindEnemyProjectile, origin, vel)
	proj.Projectile.Damage = w.cfg.Invader.Damage
	if w.reg.Create(proj) == NoID {
		w.log.Warn("registry full, dropping enemy projectile", "tick", w.tick)
	}
}

// damageInvader applies armor and the marked bonus. Phased invaders are
// intangible and take nothing.
func (w *World) damageInvader(e *Entity, amount float64, owner Owner) bool {
	d := e.Invader
	if !e.Alive || d.Phased || amount <= 0 {
		return false
	}
	if d.hasEffect(StatusMarked) {
		amount *= markedDamageMul
	}
	amount *= 1 - d.Armor
	d.Health -= amount
	if d.Health > 0 {
		return false
	}
	d.Health = 0
	e.Alive = false
	w.invaderKilled(e, owner)
	return true
}
