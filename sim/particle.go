package sim

import "math"

// ParticleData is the particle payload. Particles are purely visual and
// never collide.
type ParticleData struct {
	Size float64
}

// spawnParticles bursts debris at pos. A full registry silently drops them.
func (w *World) spawnParticles(pos Vec) {
	pc := w.cfg.Particle
	for i := 0; i < pc.PerExplosion; i++ {
		a := w.rng.Range(0, 2*math.Pi)
		e := &Entity{
			Kind:     KindParticle,
			Owner:    OwnerNeutral,
			Pos:      pos,
			Vel:      FromAngle(a, pc.Speed*w.rng.Range(0.5, 1)),
			Accel:    Vec{0, pc.Gravity},
			Drag:     pc.Friction,
			MaxAge:   pc.MaxAge,
			Particle: &ParticleData{Size: w.rng.Range(1, 3)},
		}
		if w.reg.Create(e) == NoID {
			return
		}
	}
}
