package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"shmup-server/sim"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// LevelRow is the per-level record
type LevelRow struct {
	Name      string `json:"name"`
	BestScore int    `json:"bestScore"`
	BestStars int    `json:"bestStars"`
	Plays     int    `json:"plays"`
}

// RunRow represents one finished level run
type RunRow struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Pilot     string        `json:"pilot"`
	Score     int           `json:"score"`
	Stars     int           `json:"stars"`
	Accuracy  float64       `json:"accuracy"`
	Waves     int           `json:"waves"`
	Kills     int           `json:"kills"`
	LivesLost int           `json:"livesLost"`
	Duration  time.Duration `json:"duration"`
	Won       bool          `json:"won"`
	CreatedAt time.Time     `json:"createdAt"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS levels (
		name TEXT PRIMARY KEY,
		best_score INTEGER NOT NULL DEFAULT 0,
		best_stars INTEGER NOT NULL DEFAULT 0,
		plays INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		level TEXT NOT NULL REFERENCES levels(name),
		pilot TEXT NOT NULL,
		score INTEGER NOT NULL DEFAULT 0,
		stars INTEGER NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0,
		waves INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		lives_lost INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS achievements (
		pilot TEXT NOT NULL,
		achievement_id TEXT NOT NULL,
		unlocked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (pilot, achievement_id)
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		session_id TEXT,
		tick INTEGER NOT NULL DEFAULT 0,
		data TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_level ON runs(level, score DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_pilot ON runs(pilot);
	CREATE INDEX IF NOT EXISTS idx_analytics_type ON analytics_events(event_type, created_at);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		slog.Error("db migration failed", "err", err)
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// BestScore returns the stored best score and play count for a level. An
// unknown level has neither.
func (db *DB) BestScore(level string) (int, int, error) {
	var best, plays int
	err := db.conn.QueryRow("SELECT best_score, plays FROM levels WHERE name = ?", level).Scan(&best, &plays)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return best, plays, err
}

// SaveRun records a finished run and updates the level's best. It reports
// whether the run set a new best score.
func (db *DB) SaveRun(level, pilot string, s sim.LevelSummary) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("INSERT OR IGNORE INTO levels (name) VALUES (?)", level); err != nil {
		return false, fmt.Errorf("ensure level %s: %w", level, err)
	}
	var prev int
	if err := tx.QueryRow("SELECT best_score FROM levels WHERE name = ?", level).Scan(&prev); err != nil {
		return false, fmt.Errorf("read best for %s: %w", level, err)
	}
	_, err = tx.Exec(
		`INSERT INTO runs (level, pilot, score, stars, accuracy, waves, kills, lives_lost, duration_ms, won)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		level, pilot, s.Score, s.Stars, s.Accuracy, s.Waves, s.Kills, s.LivesLost, s.Duration.Milliseconds(), s.Won,
	)
	if err != nil {
		return false, fmt.Errorf("insert run: %w", err)
	}
	_, err = tx.Exec(`
		UPDATE levels SET
			plays = plays + 1,
			best_score = MAX(best_score, ?),
			best_stars = MAX(best_stars, ?)
		WHERE name = ?`,
		s.Score, s.Stars, level,
	)
	if err != nil {
		return false, fmt.Errorf("update level %s: %w", level, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit run: %w", err)
	}
	return s.Score > prev, nil
}

// Levels returns every level that has been played, best first
func (db *DB) Levels() ([]LevelRow, error) {
	rows, err := db.conn.Query("SELECT name, best_score, best_stars, plays FROM levels ORDER BY best_score DESC, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LevelRow
	for rows.Next() {
		var l LevelRow
		if err := rows.Scan(&l.Name, &l.BestScore, &l.BestStars, &l.Plays); err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// TopRuns returns the highest scoring runs of a level
func (db *DB) TopRuns(level string, limit int) ([]RunRow, error) {
	rows, err := db.conn.Query(`
		SELECT id, level, pilot, score, stars, accuracy, waves, kills, lives_lost, duration_ms, won, created_at
		FROM runs WHERE level = ?
		ORDER BY score DESC, id
		LIMIT ?`,
		level, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunRow
	for rows.Next() {
		var r RunRow
		var ms int64
		if err := rows.Scan(&r.ID, &r.Level, &r.Pilot, &r.Score, &r.Stars, &r.Accuracy, &r.Waves, &r.Kills, &r.LivesLost, &ms, &r.Won, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		result = append(result, r)
	}
	return result, rows.Err()
}

// RunCount returns how many runs a pilot has finished
func (db *DB) RunCount(pilot string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM runs WHERE pilot = ?", pilot).Scan(&n)
	return n, err
}

// GetAchievements returns the ids a pilot has unlocked
func (db *DB) GetAchievements(pilot string) ([]string, error) {
	rows, err := db.conn.Query("SELECT achievement_id FROM achievements WHERE pilot = ? ORDER BY unlocked_at, achievement_id", pilot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UnlockAchievement records an achievement, reporting false if the pilot
// already had it
func (db *DB) UnlockAchievement(pilot, id string) (bool, error) {
	res, err := db.conn.Exec("INSERT OR IGNORE INTO achievements (pilot, achievement_id) VALUES (?, ?)", pilot, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
