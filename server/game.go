package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"shmup-server/sim"
)

const (
	TickDuration   = sim.ReferenceTick // one simulation step
	BroadcastEvery = 2                 // snapshot every N ticks
)

const maxViewersPerSession = 20

var ErrSessionFull = errors.New("session full")

// Broadcaster sends messages to one connected client
type Broadcaster interface {
	SendJSON(msg any)
	SendBinary(data []byte)
}

// GameConfig is what a session needs to build its world
type GameConfig struct {
	SessionID string
	Level     string
	LevelData *sim.LevelData
	Sim       sim.Config
	Match     MatchConfig
	Advisor   sim.Advisor
	DB        *DB
	Analytics *Analytics
	Log       *slog.Logger
}

// Game runs one level for one pilot; other clients watch
type Game struct {
	mu        sync.Mutex
	id        string
	level     string
	world     *sim.World
	match     MatchState
	db        *DB
	analytics *Analytics
	log       *slog.Logger

	viewers    map[string]Broadcaster
	names      map[string]string
	pilot      string
	input      sim.Input
	defuse     bool
	best       int
	tick       uint64
	views      []sim.EntityView
	result     *ResultMsg
	running    bool
	stop       chan struct{}
	lastActive time.Time
}

// NewGame builds the world for a session. The best score is read once here.
func NewGame(cfg GameConfig) (*Game, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session", cfg.SessionID, "level", cfg.Level)
	g := &Game{
		id:         cfg.SessionID,
		level:      cfg.Level,
		match:      NewMatchState(cfg.Match),
		db:         cfg.DB,
		analytics:  cfg.Analytics,
		log:        log,
		viewers:    make(map[string]Broadcaster),
		names:      make(map[string]string),
		stop:       make(chan struct{}),
		lastActive: time.Now(),
	}
	opts := []sim.Option{sim.WithLogger(log), sim.WithSink(sim.EffectSinkFunc(g.handleEffects))}
	if cfg.Advisor != nil {
		opts = append(opts, sim.WithAdvisor(cfg.Advisor))
	}
	world, err := sim.NewWorld(cfg.Sim, cfg.LevelData, opts...)
	if err != nil {
		return nil, fmt.Errorf("start level %s: %w", cfg.Level, err)
	}
	g.world = world

	if g.db != nil {
		best, _, err := g.db.BestScore(cfg.Level)
		if err != nil {
			log.Warn("failed to read best score", "err", err)
		}
		g.best = best
	}
	return g, nil
}

// Run steps the game until ctx is done or Stop is called
func (g *Game) Run(ctx context.Context) {
	g.mu.Lock()
	g.running = true
	g.mu.Unlock()
	g.analytics.Track(EvtSessionStart, g.id, 0, "")

	ticker := time.NewTicker(TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.update(TickDuration)
		case <-g.stop:
			return
		case <-ctx.Done():
			g.Stop()
			return
		}
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		g.running = false
		close(g.stop)
		g.analytics.Track(EvtSessionEnd, g.id, g.tick, "")
	}
}

// AddViewer attaches a client. The first viewer flies; the rest watch.
func (g *Game) AddViewer(name string, client Broadcaster) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.viewers) >= maxViewersPerSession {
		return "", false, ErrSessionFull
	}
	id := GenerateID(4)
	g.viewers[id] = client
	g.names[id] = name
	g.lastActive = time.Now()
	pilot := false
	if g.pilot == "" && g.match.Phase == PhaseLobby {
		g.pilot = id
		pilot = true
		if g.match.Start() {
			g.broadcastPhase()
		}
	}
	if g.result != nil {
		client.SendJSON(Envelope{T: MsgResult, Data: g.result})
	}
	return id, pilot, nil
}

// RemoveViewer detaches a client. A departing pilot's held keys are
// released.
func (g *Game) RemoveViewer(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.viewers, id)
	delete(g.names, id)
	g.lastActive = time.Now()
	if id == g.pilot {
		g.input = sim.Input{}
	}
}

// ViewerCount returns the number of attached clients
func (g *Game) ViewerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.viewers)
}

// HasViewer reports whether id is attached
func (g *Game) HasViewer(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.viewers[id]
	return ok
}

// Phase returns the current match phase
func (g *Game) Phase() MatchPhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.match.Phase
}

// ResultExpired reports whether the run ended and its result screen is over
func (g *Game) ResultExpired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.match.Expired()
}

// Best returns the level's best score as read at level start
func (g *Game) Best() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.best
}

// IdleSince returns when a viewer last joined or left
func (g *Game) IdleSince() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastActive
}

// HandleInput sets the pilot's intent for the coming ticks. Spectator
// input is ignored.
func (g *Game) HandleInput(viewerID string, input ClientInput) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if viewerID != g.pilot {
		return
	}
	g.input = sim.Input{MoveLeft: input.Left, MoveRight: input.Right, Fire: input.Fire}
}

// RequestDefuse asks for the bomb nearest the pilot to be defused on the
// next tick.
func (g *Game) RequestDefuse(viewerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if viewerID == g.pilot {
		g.defuse = true
	}
}

// update runs one session tick
func (g *Game) update(dt time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tick++
	if g.match.Advance(dt) {
		g.broadcastPhase()
	}

	if g.match.Phase == PhasePlaying {
		if g.defuse {
			g.defuse = false
			g.tryDefuse()
		}
		g.world.Step(dt, g.input)
		if s, ok := g.world.Summary(); ok {
			g.finish(s)
		}
	}

	if g.tick%BroadcastEvery == 0 {
		g.broadcastState()
	}
}

func (g *Game) tryDefuse() {
	p, ok := g.world.Player()
	if !ok {
		return
	}
	if id, ok := g.world.NearestBomb(p.Pos); ok && g.world.Defuse(id) {
		g.log.Debug("bomb defused", "bomb", id)
	}
}

// finish persists the run and tells every viewer the result
func (g *Game) finish(s sim.LevelSummary) {
	if !g.match.Finish() {
		return
	}
	g.broadcastPhase()

	res := &ResultMsg{
		Score:    s.Score,
		Stars:    s.Stars,
		Accuracy: s.Accuracy,
		Waves:    s.Waves,
		Won:      s.Won,
		NewBest:  s.Score > g.best,
	}
	pilot := g.names[g.pilot]
	if g.db != nil {
		newBest, err := g.db.SaveRun(g.level, pilot, s)
		if err != nil {
			g.log.Error("failed to save run", "err", err)
		} else {
			res.NewBest = newBest
			for _, a := range CheckAchievements(g.db, pilot, s) {
				res.Achievements = append(res.Achievements, a.ID)
				g.analytics.Track(EvtAchievement, g.id, g.tick, fmt.Sprintf(`{"id":%q}`, a.ID))
			}
		}
	}
	g.analytics.Track(EvtRunEnd, g.id, g.tick, fmt.Sprintf(`{"score":%d,"won":%t}`, s.Score, s.Won))
	g.log.Info("run finished", "pilot", pilot, "score", s.Score, "stars", s.Stars, "won", s.Won, "newBest", res.NewBest)

	g.result = res
	g.broadcastMsg(Envelope{T: MsgResult, Data: res})
}

// handleEffects is the world's effect sink. It runs inside Step, under g.mu.
func (g *Game) handleEffects(tick uint64, fx []sim.Effect) {
	if len(fx) == 0 {
		return
	}
	g.analytics.TrackEffects(g.id, tick, fx)
	msg := FxMsg{Tick: tick, Effects: make([]FxState, 0, len(fx))}
	for _, e := range fx {
		msg.Effects = append(msg.Effects, effectState(e))
	}
	g.broadcastMsg(Envelope{T: MsgFx, Data: msg})
}

func effectState(e sim.Effect) FxState {
	return FxState{
		Kind:   e.Kind.String(),
		X:      e.Pos.X,
		Y:      e.Pos.Y,
		Amount: e.Amount,
		Radius: e.Radius,
		Name:   e.Name,
		Value:  e.Value,
	}
}

// snapshot builds the current state. Caller holds g.mu.
func (g *Game) snapshot() GameState {
	st := g.world.Status()
	g.views = g.world.Entities(g.views[:0])
	state := GameState{
		Tick:  st.Tick,
		Phase: g.match.Phase.String(),
		HUD: HUDState{
			Score:      st.Score,
			Combo:      st.Combo,
			Lives:      st.Lives,
			Health:     float32(st.Health),
			Shield:     float32(st.Shield),
			Weapon:     st.Weapon,
			Wave:       st.Wave,
			TotalWaves: st.TotalWaves,
			Stage:      st.Stage.String(),
			BossPhase:  st.BossPhase,
			BossHealth: float32(st.BossHealth),
			Best:       g.best,
		},
		Entities: make([]EntityState, 0, len(g.views)),
	}
	for _, v := range g.views {
		state.Entities = append(state.Entities, EntityState{
			ID:    uint32(v.ID),
			Kind:  uint8(v.Kind),
			Owner: uint8(v.Owner),
			X:     float32(v.Pos.X),
			Y:     float32(v.Pos.Y),
			R:     float32(v.Radius),
			W:     float32(v.HalfW),
			H:     float32(v.HalfH),
			HP:    float32(v.Health),
			State: v.State,
			AgeMS: int32(v.Age.Milliseconds()),
		})
	}
	return state
}

// broadcastState sends the binary snapshot to every viewer
func (g *Game) broadcastState() {
	data, err := msgpack.Marshal(g.snapshot())
	if err != nil {
		g.log.Error("snapshot encode failed", "err", err)
		return
	}
	for _, client := range g.viewers {
		client.SendBinary(data)
	}
}

func (g *Game) broadcastPhase() {
	g.broadcastMsg(Envelope{T: MsgPhase, Data: PhaseMsg{Phase: g.match.Phase.String()}})
}

// broadcastMsg sends a message to all viewers in the session
func (g *Game) broadcastMsg(msg Envelope) {
	for _, client := range g.viewers {
		client.SendJSON(msg)
	}
}
