package sim

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// floatingBomb spawns an enemy bomb high above the player that does not move.
func floatingBomb(t *testing.T, w *World, pos Vec) *Entity {
	t.Helper()
	b := NewBomb(&w.cfg, pos, OwnerEnemy)
	b.Accel = Vec{}
	return spawn(t, w, b)
}

func TestBombPhaseTimeline(t *testing.T) {
	w := quietWorld(t, func(c *Config) {
		c.Bomb.Fuse = 3000 * time.Millisecond
		c.Bomb.Warning = 1000 * time.Millisecond
		c.Bomb.ArmingDelay = 500 * time.Millisecond
	})
	b := floatingBomb(t, w, Vec{400, 100})
	step := 10 * time.Millisecond

	var warningAt, explodedAt time.Duration
	for i := 0; i < 500 && b.Bomb.Phase != BombExploded; i++ {
		w.Step(step, Input{})
		if b.Bomb.Phase == BombWarning && warningAt == 0 {
			warningAt = b.Age
		}
		if b.Bomb.Phase == BombExploded {
			explodedAt = b.Age
		}
	}
	if warningAt != 2000*time.Millisecond {
		t.Errorf("expected warning at 2s, got %v", warningAt)
	}
	if explodedAt == 0 || explodedAt > 3000*time.Millisecond+w.cfg.Bomb.ExplosionDuration {
		t.Errorf("expected exploded by %v, got %v", 3000*time.Millisecond+w.cfg.Bomb.ExplosionDuration, explodedAt)
	}
	if _, ok := w.Find(b.ID); ok {
		t.Error("exploded bomb should be purged")
	}
}

func TestBombEntersSkippedPhasesInOrder(t *testing.T) {
	w := quietWorld(t, nil)
	b := floatingBomb(t, w, Vec{400, 100})
	b.Bomb.ArmingDelay = 50 * time.Millisecond
	b.Bomb.Fuse = 300 * time.Millisecond
	b.Bomb.Warning = 100 * time.Millisecond
	b.Bomb.ChainReaction = false

	warnings, explosions := 0, 0
	w.Subscribe(EffectSinkFunc(func(_ uint64, fx []Effect) {
		for _, e := range fx {
			if e.Kind != EffectSound {
				continue
			}
			switch e.Name {
			case SoundWarning:
				warnings++
			case SoundExplode:
				explosions++
			}
		}
	}))
	// one long frame jumps from Falling past Armed straight into Warning
	w.Step(250*time.Millisecond, Input{})
	if b.Bomb.Phase != BombWarning {
		t.Fatalf("expected warning, got %s", b.Bomb.Phase)
	}
	for range 4 {
		w.Step(250*time.Millisecond, Input{})
	}
	if warnings != 1 {
		t.Errorf("expected 1 warning sound, got %d", warnings)
	}
	if explosions != 1 {
		t.Errorf("expected 1 explosion sound, got %d", explosions)
	}
	if b.Bomb.Phase != BombExploded {
		t.Errorf("expected exploded, got %s", b.Bomb.Phase)
	}
}

func TestBombBlastDamagesHostilesOnly(t *testing.T) {
	w := quietWorld(t, nil)
	p, _ := w.Player()
	near := NewBomb(&w.cfg, p.Pos.Add(Vec{0, -20}), OwnerEnemy)
	near.Accel = Vec{}
	near.Bomb.Fuse = 20 * time.Millisecond
	near.Bomb.Warning = 10 * time.Millisecond
	near.Bomb.ArmingDelay = 0
	spawn(t, w, near)

	near.Bomb.ChainReaction = false

	friendly := NewBomb(&w.cfg, p.Pos.Add(Vec{0, -20}), OwnerPlayer)
	friendly.Accel = Vec{}
	friendly.Bomb.Fuse = 20 * time.Millisecond
	friendly.Bomb.Warning = 10 * time.Millisecond
	friendly.Bomb.ArmingDelay = 0
	friendly.Bomb.ChainReaction = false
	spawn(t, w, friendly)

	hits := 0
	w.damageHook = func(v *Entity, _ float64, source ID) {
		if v.Kind == KindPlayer && source == near.ID {
			hits++
		}
	}
	for range 10 {
		w.Step(10*time.Millisecond, Input{})
	}
	if hits != 1 {
		t.Errorf("expected exactly 1 blast hit on the player, got %d", hits)
	}
	if p.Player.Health != p.Player.MaxHealth-w.cfg.Bomb.Damage {
		t.Errorf("expected health %f, got %f", p.Player.MaxHealth-w.cfg.Bomb.Damage, p.Player.Health)
	}
}

func TestChainReactionIsScheduledNotImmediate(t *testing.T) {
	w := quietWorld(t, nil)
	a := floatingBomb(t, w, Vec{300, 100})
	b := floatingBomb(t, w, Vec{330, 100})
	far := floatingBomb(t, w, Vec{700, 100})
	a.Bomb.Fuse = 100 * time.Millisecond
	a.Bomb.Warning = 50 * time.Millisecond
	a.Bomb.ArmingDelay = 0

	for a.Bomb.Phase < BombExploding {
		w.Step(10*time.Millisecond, Input{})
	}
	if b.Bomb.Phase >= BombExploding {
		t.Fatal("neighbour must not explode in the same tick")
	}
	if w.sched.Pending() != 1 {
		t.Fatalf("expected 1 scheduled detonation, got %d", w.sched.Pending())
	}
	explodedAt := w.Clock()
	for range 30 {
		w.Step(10*time.Millisecond, Input{})
		if b.Bomb.Phase >= BombExploding {
			break
		}
	}
	delay := w.Clock() - explodedAt
	if b.Bomb.Phase < BombExploding {
		t.Fatal("expected chained bomb to explode")
	}
	if delay < w.cfg.Bomb.ChainJitterMin || delay > w.cfg.Bomb.ChainJitterMax+10*time.Millisecond {
		t.Errorf("expected chain delay within jitter window, got %v", delay)
	}
	if far.Bomb.Phase >= BombExploding {
		t.Error("bomb outside the chain radius should not explode")
	}
}

func TestDefuse(t *testing.T) {
	w := quietWorld(t, nil)
	b := floatingBomb(t, w, Vec{400, 100})
	for b.Bomb.Phase < BombWarning {
		w.Step(50*time.Millisecond, Input{})
	}
	if !w.Defuse(b.ID) {
		t.Fatal("expected defuse to succeed during warning")
	}
	if b.Bomb.Phase != BombDefused {
		t.Errorf("expected defused, got %s", b.Bomb.Phase)
	}
	if w.Defuse(b.ID) {
		t.Error("second defuse should fail")
	}
	w.Step(ReferenceTick, Input{})
	if _, ok := w.Find(b.ID); ok {
		t.Error("defused bomb should be purged")
	}
}

func TestDefuseRejectsExplodingBomb(t *testing.T) {
	w := quietWorld(t, nil)
	b := floatingBomb(t, w, Vec{400, 100})
	for b.Bomb.Phase < BombExploding {
		w.Step(50*time.Millisecond, Input{})
	}
	if w.Defuse(b.ID) {
		t.Error("exploding bomb cannot be defused")
	}
}

func TestBombBouncesThenRests(t *testing.T) {
	w := quietWorld(t, func(c *Config) { c.Bomb.Fuse = time.Minute })
	b := spawn(t, w, NewBomb(&w.cfg, Vec{100, 500}, OwnerEnemy))
	b.Vel = Vec{0, 6}
	for range 600 {
		w.Step(ReferenceTick, Input{})
	}
	if b.Bounces != w.cfg.Bomb.MaxBounces {
		t.Errorf("expected %d bounces, got %d", w.cfg.Bomb.MaxBounces, b.Bounces)
	}
	if b.Vel != (Vec{}) {
		t.Errorf("expected bomb at rest, got velocity %+v", b.Vel)
	}
	if want := w.cfg.Height - b.Radius; b.Pos.Y != want {
		t.Errorf("expected bomb on the floor at %f, got %f", want, b.Pos.Y)
	}
}

func TestBombPhasesMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := quietWorldRapid(rt)
		b := NewBomb(&w.cfg, Vec{400, 100}, OwnerEnemy)
		b.Accel = Vec{}
		b.Bomb.ArmingDelay = time.Duration(rapid.Int64Range(0, 1000).Draw(rt, "arming")) * time.Millisecond
		b.Bomb.Fuse = time.Duration(rapid.Int64Range(100, 4000).Draw(rt, "fuse")) * time.Millisecond
		b.Bomb.Warning = time.Duration(rapid.Int64Range(0, 100).Draw(rt, "warning")) * time.Millisecond
		w.reg.Create(b)
		w.reg.Sweep()
		defuseAt := rapid.IntRange(-1, 200).Draw(rt, "defuseAt")

		last := b.Bomb.Phase
		for i := 0; i < 300; i++ {
			if i == defuseAt {
				w.Defuse(b.ID)
			}
			dt := time.Duration(rapid.Int64Range(1, 120).Draw(rt, "dt")) * time.Millisecond
			w.Step(dt, Input{})
			if b.Bomb.Phase < last {
				rt.Fatalf("phase went from %s back to %s", last, b.Bomb.Phase)
			}
			if last.Terminal() && b.Bomb.Phase != last {
				rt.Fatalf("terminal phase %s changed to %s", last, b.Bomb.Phase)
			}
			last = b.Bomb.Phase
		}
	})
}

func quietWorldRapid(rt *rapid.T) *World {
	w, err := NewWorld(DefaultConfig(), nil, WithLogger(discard))
	if err != nil {
		rt.Fatalf("unexpected error: %v", err)
	}
	for _, e := range w.reg.Iterate(KindInvader) {
		e.Alive = false
	}
	w.reg.Sweep()
	w.director.Stage = StageIntermission
	w.director.nextWaveAt = time.Hour
	return w
}

func TestBombWeaponCountsOnlySpawnedShots(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"room", 4096, 1},
		{"registry full", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := quietWorld(t, func(c *Config) { c.MaxEntities = tt.capacity })
			p, ok := w.Player()
			if !ok {
				t.Fatal("expected a live player")
			}
			p.Player.Weapon = "bomb"
			w.firePlayer(p)
			w.reg.Sweep()
			if p.Player.ShotsFired != tt.want {
				t.Errorf("expected %d shots fired, got %d", tt.want, p.Player.ShotsFired)
			}
			if n := w.Count(KindBomb); n != tt.want {
				t.Errorf("expected %d bombs, got %d", tt.want, n)
			}
		})
	}
}
