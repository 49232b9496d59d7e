package main

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"shmup-server/sim"
)

type fakeCanvas struct {
	w, h  int
	cells map[[2]int]rune
}

func newFakeCanvas(w, h int) *fakeCanvas {
	return &fakeCanvas{w: w, h: h, cells: map[[2]int]rune{}}
}

func (c *fakeCanvas) SetContent(x, y int, r rune, _ []rune, _ tcell.Style) {
	c.cells[[2]int{x, y}] = r
}

func (c *fakeCanvas) Size() (int, int) { return c.w, c.h }

func (c *fakeCanvas) row(y int) string {
	var b strings.Builder
	for x := 0; x < c.w; x++ {
		if r, ok := c.cells[[2]int{x, y}]; ok {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// count reports how many cells hold r, skipping the given rows.
func (c *fakeCanvas) count(r rune, skip ...int) int {
	n := 0
	for pos, got := range c.cells {
		if got == r && !slices.Contains(skip, pos[1]) {
			n++
		}
	}
	return n
}

func newTestViewer(t *testing.T) *viewer {
	t.Helper()
	v := newViewer()
	w, err := sim.NewWorld(sim.DefaultConfig(), nil, sim.WithSink(sim.EffectSinkFunc(v.onEffects)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.world = w
	return v
}

func TestDrawShowsHUDAndEntities(t *testing.T) {
	v := newTestViewer(t)
	v.step(frameEvery)

	c := newFakeCanvas(80, 24)
	v.draw(c)

	if hud := c.row(0); !strings.Contains(hud, "score 0") || !strings.Contains(hud, "wave 1/") {
		t.Errorf("unexpected HUD %q", hud)
	}
	// the HUD and the banner are text and may contain the glyph letters
	if n := c.count('A', 0, 12); n != 1 {
		t.Errorf("expected 1 player glyph, got %d", n)
	}
	if c.count('w', 0, 12) == 0 {
		t.Error("expected invader glyphs")
	}
	if !strings.Contains(c.row(12), "WAVE 1") {
		t.Errorf("expected wave banner, got %q", c.row(12))
	}
}

func TestHeldKeysExpire(t *testing.T) {
	v := newTestViewer(t)
	v.handleEvent(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	if !v.input().MoveRight {
		t.Fatal("expected right held")
	}
	for v.clock < holdFor {
		v.step(frameEvery)
	}
	if v.input().MoveRight {
		t.Error("expected right released after the hold window")
	}
}

func TestOppositeKeyCancels(t *testing.T) {
	v := newTestViewer(t)
	v.handleEvent(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	v.handleEvent(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	in := v.input()
	if in.MoveRight || !in.MoveLeft {
		t.Errorf("expected only left held, got %+v", in)
	}
}

func TestQuitKeys(t *testing.T) {
	v := newTestViewer(t)
	if v.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("escape should quit")
	}
	if v.handleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("q should quit")
	}
	if !v.handleEvent(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)) {
		t.Error("space should not quit")
	}
}

func TestBannerExpires(t *testing.T) {
	v := newTestViewer(t)
	v.setBanner("BOSS")
	v.clock += 3 * time.Second
	c := newFakeCanvas(80, 24)
	v.draw(c)
	if strings.Contains(c.row(12), "BOSS") {
		t.Error("expected banner to expire")
	}
}
