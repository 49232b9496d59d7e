package sim

import (
	"math"
	"time"
)

// WeaponDef holds the stats for a player weapon
type WeaponDef struct {
	FireCD          time.Duration `yaml:"fireCooldown"`
	Damage          float64       `yaml:"damage"`
	Speed           float64       `yaml:"speed"`
	Count           int           `yaml:"count"`  // number of projectiles per shot
	Spread          float64       `yaml:"spread"` // total fan angle in radians
	Piercing        bool          `yaml:"piercing"`
	Homing          float64       `yaml:"homing"`
	ExplosionRadius float64       `yaml:"explosionRadius"`
	Split           int           `yaml:"split"`
	Bounces         int           `yaml:"bounces"`
	Status          string        `yaml:"status"`
	StatusDuration  time.Duration `yaml:"statusDuration"`
	DropsBomb       bool          `yaml:"dropsBomb"`
}

// BaseWeapon is what the player holds when no weapon power-up is active.
const BaseWeapon = "single"

func defaultWeapons() map[string]WeaponDef {
	return map[string]WeaponDef{
		// single: the starting blaster
		"single": {FireCD: 250 * time.Millisecond, Damage: 1, Speed: 8, Count: 1},
		"double": {FireCD: 250 * time.Millisecond, Damage: 1, Speed: 8, Count: 2, Spread: 0.08},
		"triple": {FireCD: 300 * time.Millisecond, Damage: 1, Speed: 8, Count: 3, Spread: 0.3},
		// spread: wide shotgun fan, weaker pellets
		"spread": {FireCD: 400 * time.Millisecond, Damage: 0.75, Speed: 7, Count: 5, Spread: 0.7},
		"laser":  {FireCD: 400 * time.Millisecond, Damage: 1, Speed: 12, Count: 1, Piercing: true},
		"homing": {FireCD: 350 * time.Millisecond, Damage: 1, Speed: 6, Count: 2, Spread: 0.4, Homing: 0.12},
		"explosive": {FireCD: 500 * time.Millisecond, Damage: 2, Speed: 6, Count: 1, ExplosionRadius: 40},
		"splitter":  {FireCD: 350 * time.Millisecond, Damage: 1, Speed: 7, Count: 1, Split: 3},
		"bouncer":   {FireCD: 300 * time.Millisecond, Damage: 1, Speed: 8, Count: 2, Spread: 0.9, Bounces: 2},
		"ice":       {FireCD: 300 * time.Millisecond, Damage: 1, Speed: 8, Count: 1, Status: StatusFrozen, StatusDuration: 2 * time.Second},
		"fire":      {FireCD: 300 * time.Millisecond, Damage: 1, Speed: 8, Count: 1, Status: StatusBurning, StatusDuration: 3 * time.Second},
		"bomb":      {FireCD: 900 * time.Millisecond, Damage: 3, Speed: 0, Count: 1, DropsBomb: true},
	}
}

// weapon returns the definition for a weapon, falling back to the base weapon.
func (c *Config) weapon(name string) WeaponDef {
	if w, ok := c.Weapons[name]; ok {
		return w
	}
	if w, ok := c.Weapons[BaseWeapon]; ok {
		return w
	}
	return defaultWeapons()[BaseWeapon]
}

// fanAngles spreads count headings evenly across spread radians around base.
func fanAngles(base, spread float64, count int) []float64 {
	if count <= 1 {
		return []float64{base}
	}
	out := make([]float64, count)
	step := spread / float64(count-1)
	start := base - spread/2
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// up is the heading of a shot fired toward the top of the canvas.
var up = -math.Pi / 2
