package sim

import "math"

// integrate is the first pass of a tick. Every live entity ages by dt, then
// moves in the fixed order acceleration, velocity, friction, position,
// boundary. Invaders do not integrate freely; their positions come from the
// formation.
func (w *World) integrate() {
	for k := Kind(0); k < kindCount; k++ {
		for _, e := range w.reg.Iterate(k) {
			if !e.Alive {
				continue
			}
			e.Age += w.dt
			if k == KindInvader {
				continue
			}
			if e.MaxAge > 0 && e.Age > e.MaxAge {
				e.Alive = false
				continue
			}
			w.move(e)
			w.boundary(e)
		}
	}
	w.moveFormation()
}

func (w *World) move(e *Entity) {
	e.Vel = e.Vel.Add(e.Accel.Scale(w.dtf))
	if e.Drag > 0 && e.Drag < 1 {
		e.Vel = e.Vel.Scale(math.Pow(e.Drag, w.dtf))
	}
	e.Pos = e.Pos.Add(e.Vel.Scale(w.dtf))
}

func (w *World) outside(p Vec) bool {
	m := w.cfg.CullMargin
	return p.X < -m || p.X > w.cfg.Width+m || p.Y < -m || p.Y > w.cfg.Height+m
}

func (w *World) boundary(e *Entity) {
	width, height := w.cfg.Width, w.cfg.Height
	switch e.Kind {
	case KindPlayer:
		e.Pos.X = Clamp(e.Pos.X, e.HalfW, width-e.HalfW)
		e.Pos.Y = Clamp(e.Pos.Y, e.HalfH, height-e.HalfH)
	case KindBoss:
		if (e.Pos.X-e.HalfW <= 0 && e.Vel.X < 0) || (e.Pos.X+e.HalfW >= width && e.Vel.X > 0) {
			e.Boss.dir = -e.Boss.dir
			e.Vel.X = -e.Vel.X
		}
		e.Pos.X = Clamp(e.Pos.X, e.HalfW, width-e.HalfW)
	case KindPlayerProjectile, KindEnemyProjectile:
		if e.Bounces < e.MaxBounces && w.reflect(e) {
			return
		}
		if w.outside(e.Pos) {
			e.Alive = false
		}
	case KindBomb:
		w.bombBoundary(e)
	case KindPowerUp, KindParticle:
		if w.outside(e.Pos) {
			e.Alive = false
		}
	}
}

// reflect bounces a projectile off the canvas walls, losing energy by the
// entity's restitution. It reports whether a bounce happened.
func (w *World) reflect(e *Entity) bool {
	bounced := false
	switch {
	case e.Pos.X-e.Radius < 0 && e.Vel.X < 0:
		e.Pos.X = e.Radius
		e.Vel.X = -e.Vel.X * e.Restitution
		bounced = true
	case e.Pos.X+e.Radius > w.cfg.Width && e.Vel.X > 0:
		e.Pos.X = w.cfg.Width - e.Radius
		e.Vel.X = -e.Vel.X * e.Restitution
		bounced = true
	}
	switch {
	case e.Pos.Y-e.Radius < 0 && e.Vel.Y < 0:
		e.Pos.Y = e.Radius
		e.Vel.Y = -e.Vel.Y * e.Restitution
		bounced = true
	case e.Pos.Y+e.Radius > w.cfg.Height && e.Vel.Y > 0:
		e.Pos.Y = w.cfg.Height - e.Radius
		e.Vel.Y = -e.Vel.Y * e.Restitution
		bounced = true
	}
	if bounced {
		e.Bounces++
	}
	return bounced
}

// bombBoundary bounces bombs off the floor until MaxBounces, then rests them
// there. A resting bomb with an impact trigger counts as an impact.
func (w *World) bombBoundary(e *Entity) {
	if e.Pos.X-e.Radius < 0 && e.Vel.X < 0 || e.Pos.X+e.Radius > w.cfg.Width && e.Vel.X > 0 {
		e.Vel.X = -e.Vel.X * e.Restitution
		e.Pos.X = Clamp(e.Pos.X, e.Radius, w.cfg.Width-e.Radius)
	}
	floor := w.cfg.Height - e.Radius
	switch {
	case e.Pos.Y >= floor && e.Vel.Y > 0:
		e.Pos.Y = floor
		if e.Bounces < e.MaxBounces {
			e.Vel.Y = -e.Vel.Y * e.Restitution
			e.Bounces++
			return
		}
		e.Vel = Vec{}
		e.Accel = Vec{}
		if e.Bomb.ImpactTrigger {
			e.Bomb.Impacted = true
		}
	case e.Pos.Y < -w.cfg.CullMargin:
		e.Alive = false
	}
}

// moveFormation slides the formation block and handles edge contact. Only
// the edge in the travel direction is checked, so one contact reverses and
// drops the block exactly once.
func (w *World) moveFormation() {
	d := &w.director
	speed, found := w.formationSpeed()
	if !found {
		return
	}
	d.offset.X += d.dir * speed * w.dtf
	w.placeInvaders()

	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, e := range w.reg.Iterate(KindInvader) {
		if !e.Alive {
			continue
		}
		minX = math.Min(minX, e.Pos.X-e.Radius)
		maxX = math.Max(maxX, e.Pos.X+e.Radius)
	}
	switch {
	case d.dir > 0 && maxX >= w.cfg.Width:
		d.offset.X -= maxX - w.cfg.Width
	case d.dir < 0 && minX <= 0:
		d.offset.X -= minX
	default:
		return
	}
	d.dir = -d.dir
	d.offset.Y += w.cfg.Invader.MoveDownAmount
	d.EdgeContacts++
	w.placeInvaders()
}

// formationSpeed is the block speed: the fastest live kind sets the pace,
// scaled by wave difficulty.
func (w *World) formationSpeed() (float64, bool) {
	fastest, found := 0.0, false
	for _, e := range w.reg.Iterate(KindInvader) {
		if !e.Alive {
			continue
		}
		found = true
		fastest = math.Max(fastest, w.cfg.stats(e.Invader.Kind).Speed)
	}
	return w.cfg.Invader.BaseSpeed * fastest * w.director.speedMul, found
}

// placeInvaders recomputes every invader position from its slot.
func (w *World) placeInvaders() {
	for _, e := range w.reg.Iterate(KindInvader) {
		if e.Alive {
			w.placeInvader(e)
		}
	}
}

func (w *World) placeInvader(e *Entity) {
	d := &w.director
	slot := e.Invader.Slot.Index
	var rel Vec
	if t, shifting := d.shiftProgress(w.clock); shifting {
		rel = blend(d.prev, d.form, slot, d.slots, t)
	} else {
		rel = d.form.Position(slot, d.slots)
	}
	e.Pos = d.offset.Add(rel).Add(e.Invader.behaviorOffset())
	e.Vel = Vec{d.dir * w.cfg.Invader.BaseSpeed * d.speedMul, 0}
}
