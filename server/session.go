package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shmup-server/sim"
)

const maxSessions = 100

// DefaultLevel is the procedurally generated level that needs no file
const DefaultLevel = "standard"

// SessionIdleTimeout is how long a session with no viewers survives
var SessionIdleTimeout = 30 * time.Second

var (
	ErrTooManySessions = errors.New("too many active sessions")
	ErrUnknownLevel    = errors.New("unknown level")
)

// Session represents a game session that clients can join
type Session struct {
	ID    string
	Name  string
	Level string
	Game  *Game
	stop  context.CancelFunc
}

// SessionDeps are the collaborators every session's game shares
type SessionDeps struct {
	Sim       sim.Config
	Match     MatchConfig
	Levels    map[string]*sim.LevelData
	Advisor   sim.Advisor
	DB        *DB
	Analytics *Analytics
	Log       *slog.Logger
}

// SessionManager handles creation and lookup of sessions
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	deps     SessionDeps
}

// NewSessionManager creates a new SessionManager
func NewSessionManager(deps SessionDeps) *SessionManager {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Levels == nil {
		deps.Levels = map[string]*sim.LevelData{}
	}
	if _, ok := deps.Levels[DefaultLevel]; !ok {
		deps.Levels[DefaultLevel] = nil
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		deps:     deps,
	}
}

// CreateSession builds a game for level and starts its loop
func (sm *SessionManager) CreateSession(ctx context.Context, name, level string) (*Session, error) {
	if level == "" {
		level = DefaultLevel
	}
	data, ok := sm.deps.Levels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.sessions) >= maxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.NewString()
	game, err := NewGame(GameConfig{
		SessionID: id,
		Level:     level,
		LevelData: data,
		Sim:       sm.deps.Sim,
		Match:     sm.deps.Match,
		Advisor:   sm.deps.Advisor,
		DB:        sm.deps.DB,
		Analytics: sm.deps.Analytics,
		Log:       sm.deps.Log,
	})
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	sess := &Session{ID: id, Name: name, Level: level, Game: game, stop: cancel}
	sm.sessions[id] = sess
	go game.Run(runCtx)
	sm.deps.Log.Info("session created", "session", id, "name", name, "level", level)
	return sess, nil
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// RemoveViewer detaches a viewer and closes the session when it empties
func (sm *SessionManager) RemoveViewer(sessionID, viewerID string) {
	sm.mu.RLock()
	sess, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return
	}
	sess.Game.RemoveViewer(viewerID)

	if sess.Game.ViewerCount() == 0 {
		sm.close(sessionID)
	}
}

// CleanupIdle closes sessions nobody has joined for SessionIdleTimeout
// and sessions whose result screen has expired. It returns how many closed.
func (sm *SessionManager) CleanupIdle(now time.Time) int {
	sm.mu.RLock()
	var stale []string
	for id, sess := range sm.sessions {
		g := sess.Game
		idle := g.ViewerCount() == 0 && now.Sub(g.IdleSince()) >= SessionIdleTimeout
		if idle || g.ResultExpired() {
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()
	for _, id := range stale {
		sm.close(id)
	}
	return len(stale)
}

func (sm *SessionManager) close(id string) {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if !ok {
		return
	}
	sess.Game.Stop()
	sess.stop()
	sm.deps.Log.Info("session closed", "session", id)
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions returns info about all active sessions
func (sm *SessionManager) ListSessions() []SessionInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	list := make([]SessionInfo, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		list = append(list, SessionInfo{
			ID:      sess.ID,
			Name:    sess.Name,
			Level:   sess.Level,
			Phase:   sess.Game.Phase().String(),
			Viewers: sess.Game.ViewerCount(),
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// LevelNames returns the playable level names, sorted
func (sm *SessionManager) LevelNames() []string {
	names := make([]string, 0, len(sm.deps.Levels))
	for name := range sm.deps.Levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadLevels reads every *.yaml level in dir. A level is keyed by its name
// field, or by file name when that is empty.
func LoadLevels(dir string) (map[string]*sim.LevelData, error) {
	levels := map[string]*sim.LevelData{}
	if dir == "" {
		return levels, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read levels dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		level, err := sim.LoadLevel(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", e.Name(), err)
		}
		name := level.Name
		if name == "" {
			name = strings.TrimSuffix(e.Name(), ".yaml")
		}
		levels[name] = level
	}
	return levels, nil
}
