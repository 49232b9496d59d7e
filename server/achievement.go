package main

import "shmup-server/sim"

// AchievementDef describes one unlockable
type AchievementDef struct {
	ID          string
	Name        string
	Description string
}

var Achievements = []AchievementDef{
	{"first_victory", "First Victory", "Defeat a boss"},
	{"flawless", "Flawless", "Win a level without losing a life"},
	{"sharpshooter", "Sharpshooter", "Finish a level with 90% accuracy and at least 20 kills"},
	{"three_stars", "Three Stars", "Earn three stars on a level"},
	{"high_roller", "High Roller", "Score 10000 points in one run"},
	{"veteran", "Veteran", "Finish 10 runs"},
}

// achieved reports whether a run satisfies an achievement. runs is the
// pilot's finished run count including this one.
func achieved(id string, s sim.LevelSummary, runs int) bool {
	switch id {
	case "first_victory":
		return s.Won
	case "flawless":
		return s.Won && s.LivesLost == 0
	case "sharpshooter":
		return s.Accuracy >= 0.9 && s.Kills >= 20
	case "three_stars":
		return s.Stars == 3
	case "high_roller":
		return s.Score >= 10000
	case "veteran":
		return runs >= 10
	}
	return false
}

// CheckAchievements unlocks what a finished run earned and returns the newly
// unlocked definitions. The run must already be saved.
func CheckAchievements(db *DB, pilot string, s sim.LevelSummary) []AchievementDef {
	if db == nil {
		return nil
	}

	runs, err := db.RunCount(pilot)
	if err != nil {
		return nil
	}
	existing, err := db.GetAchievements(pilot)
	if err != nil {
		return nil
	}
	has := make(map[string]bool, len(existing))
	for _, a := range existing {
		has[a] = true
	}

	var unlocked []AchievementDef
	for _, def := range Achievements {
		if has[def.ID] || !achieved(def.ID, s, runs) {
			continue
		}
		if newlyUnlocked, err := db.UnlockAchievement(pilot, def.ID); err == nil && newlyUnlocked {
			unlocked = append(unlocked, def)
		}
	}
	return unlocked
}
