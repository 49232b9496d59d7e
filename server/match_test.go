package main

import (
	"testing"
	"time"
)

func TestMatchLifecycle(t *testing.T) {
	ms := NewMatchState(MatchConfig{Countdown: 3 * time.Second, ResultLinger: 2 * time.Second})
	if ms.Phase != PhaseLobby {
		t.Fatalf("expected lobby, got %s", ms.Phase)
	}
	if ms.Advance(time.Second) {
		t.Error("lobby should not advance on its own")
	}
	if ms.Finish() {
		t.Error("lobby cannot finish")
	}

	if !ms.Start() {
		t.Fatal("expected start")
	}
	if ms.Start() {
		t.Error("second start should be ignored")
	}
	if ms.Advance(2 * time.Second) {
		t.Error("countdown ended early")
	}
	if !ms.Advance(time.Second) || ms.Phase != PhasePlaying {
		t.Fatalf("expected playing, got %s", ms.Phase)
	}

	if !ms.Finish() || ms.Phase != PhaseResult {
		t.Fatalf("expected result, got %s", ms.Phase)
	}
	if ms.Expired() {
		t.Error("result expired immediately")
	}
	ms.Advance(2 * time.Second)
	if !ms.Expired() {
		t.Error("expected result to expire")
	}
}

func TestMatchPhaseString(t *testing.T) {
	tests := []struct {
		phase MatchPhase
		want  string
	}{
		{PhaseLobby, "lobby"},
		{PhaseCountdown, "countdown"},
		{PhasePlaying, "playing"},
		{PhaseResult, "result"},
		{MatchPhase(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}
