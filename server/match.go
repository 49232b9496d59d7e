package main

import "time"

// MatchPhase represents the lifecycle of a session's run
type MatchPhase int

const (
	PhaseLobby     MatchPhase = 0
	PhaseCountdown MatchPhase = 1
	PhasePlaying   MatchPhase = 2
	PhaseResult    MatchPhase = 3
)

var phaseNames = [...]string{"lobby", "countdown", "playing", "result"}

func (p MatchPhase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// MatchConfig holds the phase timings
type MatchConfig struct {
	Countdown    time.Duration
	ResultLinger time.Duration
}

// DefaultMatchConfig returns the production timings
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Countdown:    3 * time.Second,
		ResultLinger: 15 * time.Second,
	}
}

// MatchState tracks which phase a session is in
type MatchState struct {
	Phase      MatchPhase
	Config     MatchConfig
	CountdownT time.Duration
	ResultT    time.Duration
}

// NewMatchState creates a match waiting for its pilot
func NewMatchState(config MatchConfig) MatchState {
	return MatchState{Phase: PhaseLobby, Config: config}
}

// Start moves a lobby into the countdown. It reports whether the phase
// changed.
func (ms *MatchState) Start() bool {
	if ms.Phase != PhaseLobby {
		return false
	}
	ms.Phase = PhaseCountdown
	ms.CountdownT = ms.Config.Countdown
	return true
}

// Finish moves a running match to the result screen
func (ms *MatchState) Finish() bool {
	if ms.Phase != PhasePlaying {
		return false
	}
	ms.Phase = PhaseResult
	ms.ResultT = ms.Config.ResultLinger
	return true
}

// Advance runs the phase timers and reports whether the phase changed.
func (ms *MatchState) Advance(dt time.Duration) bool {
	switch ms.Phase {
	case PhaseCountdown:
		ms.CountdownT -= dt
		if ms.CountdownT <= 0 {
			ms.Phase = PhasePlaying
			return true
		}
	case PhaseResult:
		if ms.ResultT > 0 {
			ms.ResultT -= dt
		}
	}
	return false
}

// Expired reports whether the result screen has run its course
func (ms *MatchState) Expired() bool {
	return ms.Phase == PhaseResult && ms.ResultT <= 0
}
