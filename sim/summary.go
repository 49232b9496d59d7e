package sim

import "time"

const starAccuracy = 0.6

// LevelSummary is handed to the persistence collaborator when a level ends.
type LevelSummary struct {
	Score     int           `json:"score" msgpack:"score"`
	Stars     int           `json:"stars" msgpack:"stars"`
	Accuracy  float64       `json:"accuracy" msgpack:"accuracy"`
	Waves     int           `json:"waves" msgpack:"waves"`
	Kills     int           `json:"kills" msgpack:"kills"`
	LivesLost int           `json:"livesLost" msgpack:"livesLost"`
	Duration  time.Duration `json:"duration" msgpack:"duration"`
	Won       bool          `json:"won" msgpack:"won"`
}

// Stars rates a run: one for winning, one for accuracy of at least 60% and
// one for losing no lives. A lost run earns none.
func Stars(won bool, accuracy float64, livesLost int) int {
	if !won {
		return 0
	}
	stars := 1
	if accuracy >= starAccuracy {
		stars++
	}
	if livesLost == 0 {
		stars++
	}
	return stars
}

func (w *World) buildSummary(won bool) LevelSummary {
	s := LevelSummary{
		Score:    w.score,
		Waves:    w.director.Wave,
		Kills:    w.kills,
		Duration: w.clock,
		Won:      won,
	}
	if e, ok := w.reg.byID[w.playerID]; ok {
		s.Accuracy = e.Player.Accuracy()
		s.LivesLost = e.Player.LivesLost
	}
	s.Stars = Stars(won, s.Accuracy, s.LivesLost)
	return s
}
