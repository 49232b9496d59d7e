// Command termview plays a level in the terminal against a local simulation.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"shmup-server/sim"
)

// Terminals report key presses but not releases, so a press counts as held
// for a short while. Auto-repeat keeps it held.
const holdFor = 150 * time.Millisecond

const (
	frameEvery = sim.ReferenceTick
	shakeFrame = 3 * sim.ReferenceTick
)

func main() {
	configPath := flag.String("config", "", "Simulation tuning YAML (default: built-in)")
	levelPath := flag.String("level", "", "Level YAML (default: procedural)")
	seed := flag.Uint64("seed", 0, "RNG seed override (0 keeps the config seed)")
	logPath := flag.String("log", "", "Write JSON logs to this file")
	flag.Parse()

	if err := run(*configPath, *levelPath, *seed, *logPath); err != nil {
		fmt.Fprintf(os.Stderr, "termview: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, levelPath string, seed uint64, logPath string) error {
	var out io.Writer = io.Discard
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	log := slog.New(slog.NewJSONHandler(out, nil))

	cfg := sim.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(configPath); err != nil {
			return err
		}
	}
	var level *sim.LevelData
	if levelPath != "" {
		var err error
		if level, err = sim.LoadLevel(levelPath); err != nil {
			return err
		}
	}

	v := newViewer()
	opts := []sim.Option{sim.WithLogger(log), sim.WithSink(sim.EffectSinkFunc(v.onEffects))}
	if seed != 0 {
		opts = append(opts, sim.WithSeed(seed))
	}
	world, err := sim.NewWorld(cfg, level, opts...)
	if err != nil {
		return err
	}
	v.world = world

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	v.loop(screen)
	if s, ok := world.Summary(); ok {
		fmt.Printf("score %d  stars %d  accuracy %.0f%%  waves %d  won %t\n",
			s.Score, s.Stars, s.Accuracy*100, s.Waves, s.Won)
	}
	return nil
}

// canvas is the part of tcell.Screen the renderer draws on
type canvas interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
	Size() (int, int)
}

type viewer struct {
	world   *sim.World
	views   []sim.EntityView
	clock   time.Duration
	left    time.Duration // held until this sim time
	right   time.Duration
	fire    time.Duration
	defuse  bool
	banner  string
	bannerT time.Duration
	shake   int
}

func newViewer() *viewer {
	return &viewer{}
}

func (v *viewer) loop(screen tcell.Screen) {
	ticker := time.NewTicker(frameEvery)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			if !v.handleEvent(ev) {
				return
			}
		case <-ticker.C:
			v.step(frameEvery)
			screen.Clear()
			v.draw(screen)
			screen.Show()
		}
	}
}

// handleEvent applies one terminal event and reports whether to keep going.
func (v *viewer) handleEvent(ev tcell.Event) bool {
	key, ok := ev.(*tcell.EventKey)
	if !ok {
		return true
	}
	switch key.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		v.left = v.clock + holdFor
		v.right = 0
	case tcell.KeyRight:
		v.right = v.clock + holdFor
		v.left = 0
	case tcell.KeyRune:
		switch key.Rune() {
		case ' ':
			v.fire = v.clock + holdFor
		case 'd':
			v.defuse = true
		case 'q':
			return false
		}
	}
	return true
}

func (v *viewer) input() sim.Input {
	return sim.Input{
		MoveLeft:  v.clock < v.left,
		MoveRight: v.clock < v.right,
		Fire:      v.clock < v.fire,
	}
}

func (v *viewer) step(dt time.Duration) {
	if v.world.Done() {
		return
	}
	if v.defuse {
		v.defuse = false
		if p, ok := v.world.Player(); ok {
			if id, ok := v.world.NearestBomb(p.Pos); ok {
				v.world.Defuse(id)
			}
		}
	}
	v.world.Step(dt, v.input())
	v.clock += dt
	if v.shake > 0 {
		v.shake--
	}
}

// onEffects turns a few effects into banner text and screen shake.
func (v *viewer) onEffects(_ uint64, fx []sim.Effect) {
	for _, e := range fx {
		switch e.Kind {
		case sim.EffectWaveStart:
			v.setBanner(fmt.Sprintf("WAVE %d", e.Value))
		case sim.EffectBossSpawned:
			v.setBanner("BOSS")
		case sim.EffectBossPhaseChange:
			v.setBanner(fmt.Sprintf("BOSS PHASE %d", e.Value))
		case sim.EffectBombDefused:
			v.setBanner("DEFUSED")
		case sim.EffectLevelComplete:
			v.setBanner("LEVEL COMPLETE")
		case sim.EffectGameOver:
			v.setBanner("GAME OVER")
		case sim.EffectScreenShake:
			v.shake = max(v.shake, int(e.Amount))
		}
	}
}

func (v *viewer) setBanner(s string) {
	v.banner = s
	v.bannerT = v.clock + 2*time.Second
}

func (v *viewer) draw(c canvas) {
	w, h := c.Size()
	if w < 10 || h < 4 {
		return
	}
	cfg := v.world.Config()
	// row 0 is the HUD; the playfield fills the rest
	sx := float64(w) / cfg.Width
	sy := float64(h-1) / cfg.Height
	offset := 0
	if v.shake > 0 && (v.clock/shakeFrame)%2 == 0 {
		offset = 1
	}

	v.views = v.world.Entities(v.views[:0])
	for _, e := range v.views {
		r, style := glyph(e)
		x := int(e.Pos.X*sx) + offset
		y := int(e.Pos.Y*sy) + 1
		if x < 0 || x >= w || y < 1 || y >= h {
			continue
		}
		c.SetContent(x, y, r, nil, style)
	}

	drawText(c, 0, 0, hudLine(v.world.Status()), tcell.StyleDefault.Reverse(true))
	if v.banner != "" && v.clock < v.bannerT {
		drawText(c, (w-len(v.banner))/2, h/2, v.banner, tcell.StyleDefault.Bold(true))
	}
}

func hudLine(st sim.Status) string {
	s := fmt.Sprintf(" score %d  x%d  lives %d  hp %.0f", st.Score, max(st.Combo, 1), st.Lives, st.Health)
	if st.Shield > 0 {
		s += fmt.Sprintf("  shield %.0f", st.Shield)
	}
	s += fmt.Sprintf("  %s  wave %d/%d  %s", st.Weapon, st.Wave, st.TotalWaves, st.Stage)
	if st.BossPhase > 0 {
		s += fmt.Sprintf("  boss p%d %.0f%%", st.BossPhase, st.BossHealth*100)
	}
	return s
}

func glyph(e sim.EntityView) (rune, tcell.Style) {
	st := tcell.StyleDefault
	switch e.Kind {
	case sim.KindPlayer:
		if e.State == "invulnerable" {
			return 'A', st.Foreground(tcell.ColorGray)
		}
		return 'A', st.Foreground(tcell.ColorAqua).Bold(true)
	case sim.KindInvader:
		switch e.State {
		case "fast":
			return 'v', st.Foreground(tcell.ColorYellow)
		case "armored":
			return 'W', st.Foreground(tcell.ColorSilver)
		case "quantum", "phased":
			return 'Q', st.Foreground(tcell.ColorPurple)
		case "supreme":
			return 'M', st.Foreground(tcell.ColorRed)
		case "frozen":
			return 'w', st.Foreground(tcell.ColorLightBlue)
		}
		return 'w', st.Foreground(tcell.ColorGreen)
	case sim.KindBoss:
		switch e.State {
		case "shielded":
			return '@', st.Foreground(tcell.ColorBlue).Bold(true)
		case "raging":
			return '@', st.Foreground(tcell.ColorRed).Bold(true)
		}
		return '@', st.Foreground(tcell.ColorFuchsia).Bold(true)
	case sim.KindPlayerProjectile:
		return '|', st.Foreground(tcell.ColorWhite)
	case sim.KindEnemyProjectile:
		if e.State == "homing" {
			return '*', st.Foreground(tcell.ColorOrange)
		}
		return '.', st.Foreground(tcell.ColorRed)
	case sim.KindBomb:
		switch e.State {
		case "warning":
			return 'O', st.Foreground(tcell.ColorRed).Blink(true)
		case "exploding":
			return '#', st.Foreground(tcell.ColorOrange)
		case "defused":
			return 'o', st.Foreground(tcell.ColorGray)
		}
		return 'o', st.Foreground(tcell.ColorYellow)
	case sim.KindPowerUp:
		return '+', st.Foreground(tcell.ColorLime)
	case sim.KindParticle:
		return '\'', st.Foreground(tcell.ColorDarkGray)
	}
	return '?', st
}

func drawText(c canvas, x, y int, s string, style tcell.Style) {
	w, _ := c.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		if x >= 0 {
			c.SetContent(x, y, r, nil, style)
		}
		x++
	}
}
