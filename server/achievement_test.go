package main

import (
	"testing"

	"shmup-server/sim"
)

func TestAchieved(t *testing.T) {
	tests := []struct {
		id   string
		s    sim.LevelSummary
		runs int
		want bool
	}{
		{"first_victory", sim.LevelSummary{Won: true}, 1, true},
		{"first_victory", sim.LevelSummary{}, 1, false},
		{"flawless", sim.LevelSummary{Won: true, LivesLost: 1}, 1, false},
		{"flawless", sim.LevelSummary{Won: true}, 1, true},
		{"sharpshooter", sim.LevelSummary{Accuracy: 0.95, Kills: 19}, 1, false},
		{"sharpshooter", sim.LevelSummary{Accuracy: 0.9, Kills: 20}, 1, true},
		{"three_stars", sim.LevelSummary{Stars: 3}, 1, true},
		{"high_roller", sim.LevelSummary{Score: 9999}, 1, false},
		{"veteran", sim.LevelSummary{}, 9, false},
		{"veteran", sim.LevelSummary{}, 10, true},
		{"unknown", sim.LevelSummary{Won: true}, 100, false},
	}
	for _, tt := range tests {
		if got := achieved(tt.id, tt.s, tt.runs); got != tt.want {
			t.Errorf("%s %+v runs=%d: expected %v, got %v", tt.id, tt.s, tt.runs, tt.want, got)
		}
	}
}

func TestCheckAchievementsUnlocksOnce(t *testing.T) {
	db := openTestDB(t)
	s := sim.LevelSummary{Won: true, LivesLost: 1, Score: 100}
	db.SaveRun("training", "Alice", s)

	got := CheckAchievements(db, "Alice", s)
	if len(got) != 1 || got[0].ID != "first_victory" {
		t.Fatalf("expected [first_victory], got %v", got)
	}
	db.SaveRun("training", "Alice", s)
	if again := CheckAchievements(db, "Alice", s); len(again) != 0 {
		t.Errorf("expected nothing new, got %v", again)
	}
}

func TestCheckAchievementsVeteran(t *testing.T) {
	db := openTestDB(t)
	for range 10 {
		db.SaveRun("training", "Bob", sim.LevelSummary{})
	}
	got := CheckAchievements(db, "Bob", sim.LevelSummary{})
	if len(got) != 1 || got[0].ID != "veteran" {
		t.Errorf("expected [veteran], got %v", got)
	}
}

func TestCheckAchievementsWithoutDB(t *testing.T) {
	if got := CheckAchievements(nil, "Alice", sim.LevelSummary{Won: true}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
