package sim

import "time"

// EntityView is the read-only projection the rendering collaborator uses.
type EntityView struct {
	ID     ID
	Kind   Kind
	Owner  Owner
	Pos    Vec
	Age    time.Duration
	State  string
	Radius float64
	HalfW  float64
	HalfH  float64
	Health float64
}

// Entities appends a view of every live entity to buf, in kind then
// creation order.
func (w *World) Entities(buf []EntityView) []EntityView {
	for k := Kind(0); k < kindCount; k++ {
		for _, e := range w.reg.Iterate(k) {
			if !e.Alive {
				continue
			}
			buf = append(buf, EntityView{
				ID:     e.ID,
				Kind:   e.Kind,
				Owner:  e.Owner,
				Pos:    e.Pos,
				Age:    e.Age,
				State:  e.VisualState(),
				Radius: e.Radius,
				HalfW:  e.HalfW,
				HalfH:  e.HalfH,
				Health: health(e),
			})
		}
	}
	return buf
}

// Status is the HUD-level summary of the running level.
type Status struct {
	Tick       uint64
	Clock      time.Duration
	Score      int
	Combo      int
	Lives      int
	Health     float64
	Shield     float64
	Weapon     string
	Wave       int
	TotalWaves int
	Stage      Stage
	BossPhase  int
	BossHealth float64 // ratio, 0 when no boss is alive
}

// Status reports the current HUD values.
func (w *World) Status() Status {
	s := Status{
		Tick:       w.tick,
		Clock:      w.clock,
		Score:      w.score,
		Combo:      w.combo,
		Wave:       w.director.Wave,
		TotalWaves: w.director.TotalWaves,
		Stage:      w.director.Stage,
	}
	if e, ok := w.reg.byID[w.playerID]; ok {
		s.Lives = e.Player.Lives
		s.Health = e.Player.Health
		s.Shield = e.Player.Shield
		s.Weapon = e.Player.Weapon
	}
	if b, ok := w.reg.Find(w.director.BossID); ok && b.Boss != nil {
		s.BossPhase = b.Boss.Phase
		s.BossHealth = b.Boss.HealthRatio()
	}
	return s
}

// NearestBomb returns the live, not yet exploding bomb closest to pos.
func (w *World) NearestBomb(pos Vec) (ID, bool) {
	best, bestD := NoID, 0.0
	for _, e := range w.reg.Iterate(KindBomb) {
		if !e.Alive || e.Bomb.Phase >= BombExploding {
			continue
		}
		if d := DistanceSq(pos, e.Pos); best == NoID || d < bestD {
			best, bestD = e.ID, d
		}
	}
	return best, best != NoID
}
