package sim

import (
	"fmt"
	"log/slog"
	"time"
)

// maxStep bounds a single Step so a stalled host cannot tunnel everything
// through walls in one frame.
const maxStep = 250 * time.Millisecond

// maxIntentRounds bounds how many times intents produced by intents are
// applied within one tick.
const maxIntentRounds = 4

// InitError is the structured failure returned when a level cannot start.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("level init failed at %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// World is one level of the simulation. It is not safe for concurrent use;
// the host drives it from a single goroutine.
type World struct {
	cfg      Config
	log      *slog.Logger
	reg      *Registry
	bus      EffectBus
	sched    Scheduler
	rng      *rng
	grid     *SpatialGrid
	tieBreak TieBreak
	advisor  Advisor
	advisory *AdvisoryClient
	director Director

	clock time.Duration
	dt    time.Duration
	dtf   float64
	tick  uint64
	input Input

	playerID ID
	score    int
	combo    int
	lastKill time.Duration
	kills    int
	summary  *LevelSummary
	last     []Effect

	resolved map[pairKey]struct{}
	refBuf   []EntityRef
	candBuf  []candidate
	hitBuf   []candidate

	damageHook func(v *Entity, amount float64, source ID)
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

// WithAdvisor enables the boss pattern advisory collaborator.
func WithAdvisor(a Advisor) Option {
	return func(w *World) {
		w.advisor = a
	}
}

// WithSink subscribes an outbound effect consumer.
func WithSink(s EffectSink) Option {
	return func(w *World) {
		w.bus.Subscribe(s)
	}
}

// WithSeed overrides the configured RNG seed.
func WithSeed(seed uint64) Option {
	return func(w *World) {
		w.rng = newRNG(seed)
	}
}

// NewWorld validates the config, creates the registry and spawns the player
// and the first wave. level may be nil for a procedural level.
func NewWorld(cfg Config, level *LevelData, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Stage: "config", Err: err}
	}
	reg, err := NewRegistry(cfg.MaxEntities)
	if err != nil {
		return nil, &InitError{Stage: "registry", Err: err}
	}
	tb, _ := parseTieBreak(cfg.Collision.TieBreak)
	w := &World{
		cfg:      cfg,
		log:      slog.Default(),
		reg:      reg,
		rng:      newRNG(cfg.Seed),
		grid:     NewSpatialGrid(cfg.Width, cfg.Height, cfg.Collision.CellSize),
		tieBreak: tb,
		resolved: make(map[pairKey]struct{}),
	}
	w.director = Director{
		TotalWaves: cfg.Waves.TotalWaves,
		level:      level,
		speedMul:   1,
		fireMul:    1,
		dir:        1,
	}
	personality := cfg.Boss.Personality
	if level != nil {
		if level.TotalWaves > 0 {
			w.director.TotalWaves = level.TotalWaves
		}
		if level.BossPersonality != "" {
			personality = level.BossPersonality
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.advisor != nil && cfg.Advisory.Enabled {
		w.advisory = NewAdvisoryClient(w.advisor, cfg.Advisory, w.log)
	}
	p, ok := ParsePersonality(personality)
	if !ok {
		w.log.Warn("unknown boss personality, using tactical", "personality", personality)
	}
	w.director.personality = p

	player := NewPlayer(&w.cfg)
	if w.playerID = w.reg.Create(player); w.playerID == NoID {
		return nil, &InitError{Stage: "registry", Err: fmt.Errorf("%w: cannot place player", ErrRegistryInit)}
	}
	w.startWave(1)
	w.reg.Sweep()
	return w, nil
}

// Step advances the simulation by dt with the given input snapshot and
// returns the effects delivered to sinks for this tick. The returned slice
// is owned by the caller.
func (w *World) Step(dt time.Duration, in Input) []Effect {
	if w.Done() {
		return nil
	}
	if dt <= 0 {
		return nil
	}
	if dt > maxStep {
		w.log.Debug("clamping long frame", "dt", dt, "max", maxStep)
		dt = maxStep
	}
	w.tick++
	w.bus.tick = w.tick
	w.dt = dt
	w.dtf = float64(dt) / float64(ReferenceTick)
	w.clock += dt
	w.input = in

	w.integrate()
	w.advanceStates()
	w.resolveCollisions()
	w.applyIntents()
	w.direct()
	w.applyIntents()

	w.reg.Sweep()
	w.last = w.bus.flush(w.tick + 1)
	return w.last
}

// advanceStates runs due scheduled events, then every time-driven machine.
func (w *World) advanceStates() {
	for _, ev := range w.sched.Due(w.clock) {
		switch ev.Kind {
		case ScheduleDetonate:
			w.detonate(ev.Target)
		}
	}
	for _, e := range w.reg.Iterate(KindPlayer) {
		if e.Alive {
			w.applyInput(e)
			w.updatePlayer(e)
		}
	}
	for _, e := range w.reg.Iterate(KindInvader) {
		if e.Alive {
			w.updateInvader(e)
		}
	}
	for _, e := range w.reg.Iterate(KindBoss) {
		if e.Alive {
			w.updateBoss(e)
		}
	}
	for _, k := range []Kind{KindPlayerProjectile, KindEnemyProjectile} {
		for _, e := range w.reg.Iterate(k) {
			if e.Alive {
				w.steerProjectile(e)
			}
		}
	}
	for _, e := range w.reg.Iterate(KindBomb) {
		if e.Alive {
			w.updateBomb(e)
		}
	}
	for _, e := range w.reg.Iterate(KindPowerUp) {
		if e.Alive {
			w.updatePowerUp(e)
		}
	}
}

// applyIntents consumes the internal effects queued so far. Applying one can
// queue more, so this runs in bounded rounds.
func (w *World) applyIntents() {
	for round := 0; round < maxIntentRounds; round++ {
		intents := w.bus.take()
		if len(intents) == 0 {
			return
		}
		for _, fx := range intents {
			switch fx.Kind {
			case EffectAreaDamage:
				w.applyAreaDamage(fx)
			case EffectSpawnSplit:
				w.spawnSplit(fx)
			case EffectSpawnPowerUp:
				w.spawnPowerUp(fx)
			}
		}
	}
	if dropped := len(w.bus.take()); dropped > 0 {
		w.log.Warn("intent rounds exhausted, dropping intents", "dropped", dropped, "tick", w.tick)
	}
}

// Player returns the live player entity.
func (w *World) Player() (*Entity, bool) {
	return w.reg.Find(w.playerID)
}

// Find resolves an entity id for read access.
func (w *World) Find(id ID) (*Entity, bool) {
	return w.reg.Find(id)
}

// Count returns the number of live entities of kind.
func (w *World) Count(k Kind) int {
	return w.reg.Count(k)
}

// Subscribe adds an outbound effect sink.
func (w *World) Subscribe(s EffectSink) {
	w.bus.Subscribe(s)
}

// Done reports whether the level has ended.
func (w *World) Done() bool {
	return w.director.Stage == StageComplete || w.director.Stage == StageGameOver
}

// Summary returns the level result once the level has ended.
func (w *World) Summary() (LevelSummary, bool) {
	if w.summary == nil {
		return LevelSummary{}, false
	}
	return *w.summary, true
}

// Director exposes wave progression state for hosts and renderers.
func (w *World) Director() *Director {
	return &w.director
}

// Tick is the number of completed steps.
func (w *World) Tick() uint64 { return w.tick }

// Clock is the simulated time elapsed.
func (w *World) Clock() time.Duration { return w.clock }

// Score is the running score.
func (w *World) Score() int { return w.score }

// Config returns a copy of the active configuration.
func (w *World) Config() Config { return w.cfg }
