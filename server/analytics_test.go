package main

import (
	"context"
	"testing"

	"shmup-server/sim"
)

// runAnalytics tracks through fn, then stops the writer so the queue drains.
func runAnalytics(t *testing.T, a *Analytics, fn func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	fn()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyticsNilSafe(t *testing.T) {
	var a *Analytics
	a.Track(EvtSessionStart, "s", 0, "")
	a.TrackEffects("s", 1, []sim.Effect{{Kind: sim.EffectWaveStart}})
}

func TestAnalyticsTracksSelectedEffects(t *testing.T) {
	a := NewAnalytics(openTestDB(t))
	runAnalytics(t, a, func() {
		a.Track(EvtSessionStart, "s1", 0, "")
		a.TrackEffects("s1", 5, []sim.Effect{
			{Kind: sim.EffectWaveStart, Value: 1},
			{Kind: sim.EffectSound, Name: "laser"},
			{Kind: sim.EffectScreenShake, Amount: 4},
			{Kind: sim.EffectWaveStart, Value: 2},
		})
	})

	counts, err := a.EventCounts(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts[EvtSessionStart] != 1 {
		t.Errorf("expected 1 session start, got %d", counts[EvtSessionStart])
	}
	if counts[sim.EffectWaveStart.String()] != 2 {
		t.Errorf("expected 2 wave starts, got %d", counts[sim.EffectWaveStart.String()])
	}
	if counts[sim.EffectSound.String()] != 0 {
		t.Errorf("sounds should not be tracked, got %d", counts[sim.EffectSound.String()])
	}
	if a.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", a.Dropped())
	}
}

func TestBossPhaseReach(t *testing.T) {
	a := NewAnalytics(openTestDB(t))
	runAnalytics(t, a, func() {
		a.TrackEffects("s1", 10, []sim.Effect{{Kind: sim.EffectBossPhaseChange, Value: 2}})
		a.TrackEffects("s1", 20, []sim.Effect{{Kind: sim.EffectBossPhaseChange, Value: 3}})
		a.TrackEffects("s2", 10, []sim.Effect{{Kind: sim.EffectBossPhaseChange, Value: 2}})
	})

	reach, err := a.BossPhaseReach()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reach[2] != 2 || reach[3] != 1 {
		t.Errorf("expected phase 2 by 2 sessions and phase 3 by 1, got %v", reach)
	}
}

func TestAnalyticsDropsWhenFull(t *testing.T) {
	a := NewAnalytics(nil)
	for range analyticsBuffer + 3 {
		a.Track(EvtRunEnd, "s", 0, "")
	}
	if a.Dropped() != 3 {
		t.Errorf("expected 3 dropped, got %d", a.Dropped())
	}
}
