package sim

import "time"

// Stage is the director's position in the level.
type Stage uint8

const (
	StageWave Stage = iota
	StageIntermission
	StageBoss
	StageComplete
	StageGameOver
)

var stageNames = [...]string{"wave", "intermission", "boss", "complete", "game_over"}

func (s Stage) String() string {
	if int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Director runs wave progression, the formation block and difficulty.
type Director struct {
	Stage        Stage
	Wave         int
	TotalWaves   int
	BossID       ID
	BossSpawns   int
	EdgeContacts int

	level       *LevelData
	personality Personality
	form        Formation
	prev        Formation
	shiftStart  time.Duration
	shiftEnd    time.Duration
	offset      Vec
	dir         float64
	slots       int
	speedMul    float64
	fireMul     float64
	coordinated bool
	syncCD      time.Duration
	shiftCD     time.Duration
	nextWaveAt  time.Duration
}

// shiftProgress reports how far a formation shift has blended and whether
// one is in progress.
func (d *Director) shiftProgress(now time.Duration) (float64, bool) {
	if d.shiftEnd <= d.shiftStart || now >= d.shiftEnd {
		return 1, false
	}
	return float64(now-d.shiftStart) / float64(d.shiftEnd-d.shiftStart), true
}

// Formation returns the active formation.
func (d *Director) Formation() Formation {
	return d.form
}

type rosterEntry struct {
	kind     InvaderKind
	behavior Behavior
}

// startWave destroys leftover invaders, builds the roster and applies the
// wave's difficulty.
func (w *World) startWave(n int) {
	d := &w.director
	for _, e := range w.reg.Iterate(KindInvader) {
		e.Alive = false
	}
	d.Wave = n
	d.Stage = StageWave
	d.speedMul = 1 + w.cfg.Waves.SpeedScale*float64(n-1)
	d.fireMul = 1 + w.cfg.Waves.FireScale*float64(n-1)
	d.coordinated = n > w.cfg.Waves.CoordinationWave
	d.syncCD = w.cfg.Waves.SyncFireCooldown
	d.shiftCD = w.cfg.Waves.ShiftCooldown
	d.shiftStart, d.shiftEnd = 0, 0
	d.offset = Vec{w.cfg.Waves.OriginX, w.cfg.Waves.OriginY}
	d.dir = 1

	roster, form := w.roster(n)
	d.form = form
	d.prev = form
	d.slots = len(roster)
	for i, r := range roster {
		slot := Slot{Index: i, Row: i / max(form.Columns, 1), Col: i % max(form.Columns, 1)}
		e := NewInvader(&w.cfg, r.kind, r.behavior, slot)
		if w.reg.Create(e) == NoID {
			w.log.Warn("registry full, wave truncated", "wave", n, "spawned", i, "roster", len(roster))
			break
		}
		e.Invader.FireCooldown = w.invaderFireInterval(e.Invader)
		w.placeInvader(e)
	}
	w.log.Info("wave started", "wave", n, "invaders", len(roster), "formation", form.Kind.String(), "coordinated", d.coordinated)
	w.bus.Publish(Effect{Kind: EffectWaveStart, Value: n, Name: form.Kind.String()})
}

// roster builds the wave from level data when present, otherwise
// procedurally. Malformed entries are replaced by defaults.
func (w *World) roster(n int) ([]rosterEntry, Formation) {
	wc := w.cfg.Waves
	form := Formation{Kind: FormationGrid, Columns: wc.Columns, SpacingX: wc.SpacingX, SpacingY: wc.SpacingY}
	d := &w.director
	if d.level != nil && n-1 < len(d.level.Waves) {
		wd := d.level.Waves[n-1]
		if wd.Formation != "" {
			k, ok := ParseFormation(wd.Formation)
			if !ok {
				w.log.Warn("unknown formation in level data, using grid", "wave", n, "formation", wd.Formation)
			}
			form.Kind = k
		}
		if wd.Columns > 0 {
			form.Columns = wd.Columns
		}
		var out []rosterEntry
		for _, entry := range wd.Invaders {
			if entry.Count <= 0 {
				w.log.Warn("skipping wave entry with non-positive count", "wave", n, "kind", entry.Kind)
				continue
			}
			k, ok := ParseInvaderKind(entry.Kind)
			if !ok {
				w.log.Warn("unknown invader kind in level data, using basic", "wave", n, "kind", entry.Kind)
			}
			b := BehaviorSimple
			if entry.Behavior != "" {
				if b, ok = ParseBehavior(entry.Behavior); !ok {
					w.log.Warn("unknown behavior in level data, using simple", "wave", n, "behavior", entry.Behavior)
				}
			}
			for range entry.Count {
				out = append(out, rosterEntry{kind: k, behavior: b})
			}
		}
		if len(out) > 0 {
			return out, form
		}
		w.log.Warn("empty wave in level data, generating default", "wave", n)
	}

	form.Kind = FormationKind((n - 1) % int(formationKindCount))
	rows := wc.Rows + (n-1)/2
	out := make([]rosterEntry, 0, rows*wc.Columns)
	for row := range rows {
		k, b := proceduralRow(n, row)
		for range wc.Columns {
			out = append(out, rosterEntry{kind: k, behavior: b})
		}
	}
	return out, form
}

// proceduralRow picks the kind and behavior of a generated row. Tougher
// kinds appear in the front rows as waves advance.
func proceduralRow(wave, row int) (InvaderKind, Behavior) {
	switch {
	case wave >= 5 && row == 0:
		return InvaderSupreme, BehaviorTactical
	case wave >= 4 && row <= 1:
		return InvaderQuantum, BehaviorUnpredictable
	case wave >= 3 && row <= 1:
		return InvaderArmored, BehaviorDefensive
	case wave >= 2 && row == 0:
		return InvaderFast, BehaviorAggressive
	}
	return InvaderBasic, BehaviorSimple
}

// direct is the last pass of a tick: it checks termination conditions and
// advances the level.
func (w *World) direct() {
	d := &w.director
	if d.Stage == StageComplete || d.Stage == StageGameOver {
		return
	}
	player, ok := w.Player()
	if !ok {
		w.finish(false)
		return
	}
	if w.invadersReached(player) {
		return
	}

	switch d.Stage {
	case StageWave:
		if w.reg.Count(KindInvader) > 0 {
			w.coordinate()
			return
		}
		w.bus.Publish(Effect{Kind: EffectWaveCleared, Value: d.Wave})
		if d.Wave >= d.TotalWaves {
			w.spawnBoss()
			return
		}
		d.Stage = StageIntermission
		d.nextWaveAt = w.clock + w.cfg.Waves.ClearDelay
	case StageIntermission:
		if w.clock >= d.nextWaveAt {
			w.startWave(d.Wave + 1)
		}
	case StageBoss:
		if _, alive := w.reg.Find(d.BossID); !alive {
			w.finish(true)
		}
	}
}

// spawnBoss creates the level's single boss. Later calls are ignored.
func (w *World) spawnBoss() {
	d := &w.director
	if d.BossSpawns > 0 {
		return
	}
	boss := NewBoss(&w.cfg, d.personality)
	id := w.reg.Create(boss)
	if id == NoID {
		// registry full: retry on the next tick
		w.log.Warn("registry full, boss spawn deferred", "tick", w.tick)
		return
	}
	d.BossSpawns++
	d.BossID = id
	d.Stage = StageBoss
	w.log.Info("boss spawned", "personality", d.personality.String(), "wave", d.Wave)
	w.bus.Publish(Effect{Kind: EffectBossSpawned, Pos: boss.Pos, Source: id, Name: d.personality.String()})
}

// invadersReached costs the player a life when any invader gets down to the
// player's line, then restarts the wave.
func (w *World) invadersReached(player *Entity) bool {
	line := player.Pos.Y - player.Radius
	for _, e := range w.reg.Iterate(KindInvader) {
		if !e.Alive || e.Pos.Y+e.Radius < line {
			continue
		}
		w.log.Info("invaders reached the player line", "wave", w.director.Wave)
		w.loseLife(player)
		if !player.Alive {
			w.finish(false)
			return true
		}
		w.startWave(w.director.Wave)
		return true
	}
	return false
}

// coordinate runs the synchronized-fire and formation-shift abilities of
// waves past the coordination threshold.
func (w *World) coordinate() {
	d := &w.director
	if !d.coordinated {
		return
	}
	d.syncCD -= w.dt
	if d.syncCD <= 0 {
		d.syncCD = w.cfg.Waves.SyncFireCooldown
		w.syncVolley()
	}
	if _, shifting := d.shiftProgress(w.clock); shifting {
		return
	}
	d.shiftCD -= w.dt
	if d.shiftCD <= 0 {
		d.shiftCD = w.cfg.Waves.ShiftCooldown
		d.prev = d.form
		d.form.Kind = (d.form.Kind + 1) % formationKindCount
		d.shiftStart = w.clock
		d.shiftEnd = w.clock + w.cfg.Waves.ShiftDuration
		w.log.Debug("formation shift", "from", d.prev.Kind.String(), "to", d.form.Kind.String())
	}
}

// syncVolley makes the front invader of every column fire at once.
func (w *World) syncVolley() {
	front := make(map[int]*Entity)
	for _, e := range w.reg.Iterate(KindInvader) {
		if !e.Alive || e.Invader.Phased || e.Invader.hasEffect(StatusFrozen) {
			continue
		}
		col := e.Invader.Slot.Col
		if cur, ok := front[col]; !ok || e.Pos.Y > cur.Pos.Y {
			front[col] = e
		}
	}
	for _, e := range w.reg.Iterate(KindInvader) {
		if f, ok := front[e.Invader.Slot.Col]; ok && f == e {
			w.fireInvader(e)
		}
	}
}

// finish ends the level and records the summary.
func (w *World) finish(won bool) {
	d := &w.director
	if won {
		d.Stage = StageComplete
	} else {
		d.Stage = StageGameOver
	}
	s := w.buildSummary(won)
	w.summary = &s
	if won {
		w.bus.Publish(Effect{Kind: EffectLevelComplete, Amount: float64(s.Score), Value: s.Stars})
	} else {
		w.bus.Publish(Effect{Kind: EffectGameOver, Amount: float64(s.Score)})
	}
	w.log.Info("level finished", "won", won, "score", s.Score, "stars", s.Stars, "accuracy", s.Accuracy)
}
