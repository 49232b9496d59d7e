package sim

// EffectKind tags an Effect Bus event.
type EffectKind uint8

const (
	EffectScore EffectKind = iota
	EffectAreaDamage
	EffectChainReaction
	EffectScreenShake
	EffectFlash
	EffectSound
	EffectSpawnSplit
	EffectSpawnPowerUp
	EffectBossPhaseChange
	EffectWaveStart
	EffectWaveCleared
	EffectBossSpawned
	EffectBossDefeated
	EffectPlayerHit
	EffectGameOver
	EffectLevelComplete
	EffectBombDefused
	effectKindCount
)

var effectNames = [effectKindCount]string{
	"score", "area_damage", "chain_reaction", "screen_shake", "flash", "sound",
	"spawn_split", "spawn_power_up", "boss_phase_change", "wave_start", "wave_cleared",
	"boss_spawned", "boss_defeated", "player_hit", "game_over", "level_complete", "bomb_defused",
}

func (k EffectKind) String() string {
	if k >= effectKindCount {
		return "unknown"
	}
	return effectNames[k]
}

// internal reports whether the tick driver consumes the effect itself before
// it reaches the outbound sinks.
func (k EffectKind) internal() bool {
	return k == EffectAreaDamage || k == EffectSpawnSplit || k == EffectSpawnPowerUp
}

// Sound names carried by EffectSound.
const (
	SoundShoot           = "shoot"
	SoundExplode         = "explode"
	SoundHit             = "hit"
	SoundPowerUp         = "power_up"
	SoundBossPhaseChange = "boss_phase_change"
	SoundWarning         = "warning"
	SoundShieldBreak     = "shield_break"
	SoundTeleport        = "teleport"
)

// Effect is one fire-and-forget event. Fields not meaningful for a kind are
// left zero.
type Effect struct {
	Kind   EffectKind
	Tick   uint64
	Pos    Vec
	Amount float64 // score delta, damage, shake intensity
	Radius float64
	Owner  Owner
	Source ID
	Target ID
	Name   string // sound name, pattern name, power-up effect
	Value  int    // phase, wave number, split count
}

// EffectSink receives every outbound effect of a tick after the tick has
// finished. Implementations must not block or modify the slice.
type EffectSink interface {
	HandleEffects(tick uint64, effects []Effect)
}

// EffectSinkFunc adapts a function to EffectSink.
type EffectSinkFunc func(tick uint64, effects []Effect)

func (f EffectSinkFunc) HandleEffects(tick uint64, effects []Effect) { f(tick, effects) }

// EffectBus collects effects emitted during a tick. Entities never reach back
// into the world; they publish intents here and the tick driver applies them
// after the pass that produced them.
type EffectBus struct {
	tick     uint64
	pending  []Effect
	outbound []Effect
	sinks    []EffectSink
}

// Publish queues an effect for the current tick.
func (b *EffectBus) Publish(e Effect) {
	e.Tick = b.tick
	b.pending = append(b.pending, e)
}

func (b *EffectBus) sound(name string, pos Vec) {
	b.Publish(Effect{Kind: EffectSound, Name: name, Pos: pos})
}

// Subscribe registers an outbound consumer.
func (b *EffectBus) Subscribe(s EffectSink) {
	b.sinks = append(b.sinks, s)
}

// take hands the queued effects to the driver: internal intents are returned,
// everything else moves to the outbound buffer.
func (b *EffectBus) take() []Effect {
	var intents []Effect
	for _, e := range b.pending {
		if e.Kind.internal() {
			intents = append(intents, e)
			continue
		}
		b.outbound = append(b.outbound, e)
	}
	clear(b.pending)
	b.pending = b.pending[:0]
	return intents
}

// flush delivers the outbound buffer to every sink and starts the next tick.
func (b *EffectBus) flush(nextTick uint64) []Effect {
	delivered := b.outbound
	for _, s := range b.sinks {
		s.HandleEffects(b.tick, delivered)
	}
	b.outbound = nil
	b.tick = nextTick
	return delivered
}
