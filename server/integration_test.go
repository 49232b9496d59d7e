package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"shmup-server/sim"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

type testServer struct {
	srv   *httptest.Server
	hub   *Hub
	wsURL string
}

// startTestServer spins up an httptest.Server with a running Hub backed by
// a temp database and the sample levels.
func startTestServer(t *testing.T) *testServer {
	t.Helper()

	prevIdleTimeout := SessionIdleTimeout
	SessionIdleTimeout = 150 * time.Millisecond

	// Create a temp client dir with a minimal index.html
	tmpDir := t.TempDir()
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	levels, err := LoadLevels(filepath.Join("..", "testdata", "levels"))
	if err != nil {
		t.Fatalf("load levels: %v", err)
	}
	db := openTestDB(t)

	hub := NewHub(SessionDeps{
		Sim:    sim.DefaultConfig(),
		Match:  MatchConfig{Countdown: 50 * time.Millisecond, ResultLinger: time.Second},
		Levels: levels,
		DB:     db,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(SetupRoutes(hub, tmpDir))
	t.Cleanup(func() {
		cancel()
		srv.Close()
		SessionIdleTimeout = prevIdleTimeout
	})

	return &testServer{
		srv:   srv,
		hub:   hub,
		wsURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one message from the WebSocket. Binary frames are
// decoded as msgpack GameState.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var gs GameState
		if err := msgpack.Unmarshal(raw, &gs); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgState, Data: gs}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// readUntil skips interleaved state, fx and phase traffic until a message
// of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if env := readEnvelope(t, conn); env.T == want {
			return env
		}
	}
	t.Fatalf("no %s message received", want)
	return Envelope{}
}

// readStateWhere reads snapshots until one satisfies ok.
func readStateWhere(t *testing.T, conn *websocket.Conn, ok func(GameState) bool) GameState {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		env := readEnvelope(t, conn)
		if env.T != MsgState {
			continue
		}
		if gs := env.Data.(GameState); ok(gs) {
			return gs
		}
	}
	t.Fatal("no matching snapshot received")
	return GameState{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]any.
func dataMap(t *testing.T, env Envelope) map[string]any {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]any
	json.Unmarshal(raw, &m)
	return m
}

// createSession creates a session on level and returns its ID.
func createSession(t *testing.T, conn *websocket.Conn, sname, level string) string {
	t.Helper()
	sendMsg(t, conn, MsgCreate, map[string]string{"sname": sname, "level": level})
	created := readUntil(t, conn, MsgCreated)
	return dataMap(t, created)["sid"].(string)
}

// join attaches conn to sid and returns the welcome payload.
func join(t *testing.T, conn *websocket.Conn, name, sid string) map[string]any {
	t.Helper()
	sendMsg(t, conn, MsgJoin, map[string]string{"name": name, "sid": sid})
	joined := readUntil(t, conn, MsgJoined)
	if got := dataMap(t, joined)["sid"]; got != sid {
		t.Fatalf("expected to join session %s, got %v", sid, got)
	}
	return dataMap(t, readUntil(t, conn, MsgWelcome))
}

// createAndJoin creates a session then joins it. Returns the session ID.
func createAndJoin(t *testing.T, conn *websocket.Conn, name, sname string) string {
	t.Helper()
	sid := createSession(t, conn, sname, "")
	join(t, conn, name, sid)
	return sid
}

func listSessions(t *testing.T, conn *websocket.Conn) []SessionInfo {
	t.Helper()
	sendMsg(t, conn, MsgList, nil)
	env := readUntil(t, conn, MsgSessions)
	raw, _ := json.Marshal(env.Data)
	var sessions []SessionInfo
	json.Unmarshal(raw, &sessions)
	return sessions
}

// ---------- Session manager uses UUIDs ----------

func TestSessionIDIsUUID(t *testing.T) {
	sm := NewSessionManager(SessionDeps{Sim: sim.DefaultConfig(), Match: DefaultMatchConfig()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(map[string]bool)
	for range 5 {
		sess, err := sm.CreateSession(ctx, "TestArena", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !uuidRegex.MatchString(sess.ID) {
			t.Errorf("session ID %q is not a valid UUID v4", sess.ID)
		}
		if seen[sess.ID] {
			t.Fatalf("duplicate session ID %s", sess.ID)
		}
		seen[sess.ID] = true
		if sess.Level != DefaultLevel {
			t.Errorf("expected level %s, got %s", DefaultLevel, sess.Level)
		}
	}
}

func TestCreateSessionUnknownLevel(t *testing.T) {
	sm := NewSessionManager(SessionDeps{Sim: sim.DefaultConfig(), Match: DefaultMatchConfig()})
	_, err := sm.CreateSession(context.Background(), "Arena", "nowhere")
	if err == nil || !strings.Contains(err.Error(), ErrUnknownLevel.Error()) {
		t.Errorf("expected unknown level error, got %v", err)
	}
	if sm.Count() != 0 {
		t.Errorf("expected 0 sessions, got %d", sm.Count())
	}
}

func TestCleanupIdleClosesEmptySessions(t *testing.T) {
	sm := NewSessionManager(SessionDeps{Sim: sim.DefaultConfig(), Match: DefaultMatchConfig()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := sm.CreateSession(ctx, "Arena", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := sm.CleanupIdle(time.Now()); n != 0 {
		t.Errorf("fresh session should survive, closed %d", n)
	}
	if n := sm.CleanupIdle(time.Now().Add(SessionIdleTimeout)); n != 1 {
		t.Errorf("expected 1 idle session closed, got %d", n)
	}
	if sm.GetSession(sess.ID) != nil {
		t.Error("expected session removed")
	}
}

// ---------- SPA routing ----------

func TestSPARoutingRoot(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingUUIDPath(t *testing.T) {
	ts := startTestServer(t)

	id := uuid.NewString()
	resp, err := http.Get(ts.srv.URL + "/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /%s status = %d, want 200", id, resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "<html>") {
		t.Errorf("UUID path should serve index.html, got %q", body)
	}
}

func TestSPARoutingStaticFiles(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/js/main.js")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("GET /js/main.js status = %d, want 200", resp.StatusCode)
	}
}

func TestSPARoutingNonUUIDPath(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/not-a-uuid")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	// Should fall through to file server (404)
	if resp.StatusCode != 404 {
		t.Errorf("GET /not-a-uuid status = %d, want 404", resp.StatusCode)
	}
}

// ---------- HTTP API ----------

func TestHealthz(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var health map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health["sessions"] != 0 {
		t.Errorf("expected 0 sessions, got %d", health["sessions"])
	}
}

func TestAPILevels(t *testing.T) {
	ts := startTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/levels")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var levels []LevelRow
	if err := json.NewDecoder(resp.Body).Decode(&levels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, l.Name)
	}
	want := []string{"gauntlet", DefaultLevel, "training"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected levels %v, got %v", want, names)
	}
}

func TestAPILevelRuns(t *testing.T) {
	ts := startTestServer(t)
	ts.hub.db.SaveRun("training", "Alice", sim.LevelSummary{Score: 300})
	ts.hub.db.SaveRun("training", "Bob", sim.LevelSummary{Score: 700})

	resp, err := http.Get(ts.srv.URL + "/api/levels/training/runs?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var runs []RunRow
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].Pilot != "Bob" || runs[0].Score != 700 {
		t.Errorf("expected Bob's 700 on top, got %+v", runs)
	}
}

// ---------- Session check protocol ----------

func TestCheckSessionExists(t *testing.T) {
	ts := startTestServer(t)

	c1 := dialWS(t, ts.wsURL)
	sid := createAndJoin(t, c1, "Pilot", "Arena")

	c2 := dialWS(t, ts.wsURL)
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})

	d := dataMap(t, readUntil(t, c2, MsgChecked))
	if d["exists"] != true {
		t.Error("expected exists=true")
	}
	if d["sid"] != sid {
		t.Errorf("expected sid=%s, got %v", sid, d["sid"])
	}
	if d["name"] != "Arena" {
		t.Errorf("expected name=Arena, got %v", d["name"])
	}
	if d["viewers"].(float64) != 1 {
		t.Errorf("expected 1 viewer, got %v", d["viewers"])
	}
}

func TestCheckSessionNotExists(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	fakeSID := uuid.NewString()
	sendMsg(t, c, MsgCheck, map[string]string{"sid": fakeSID})

	d := dataMap(t, readUntil(t, c, MsgChecked))
	if d["exists"] != false {
		t.Error("expected exists=false for non-existent session")
	}
	if d["sid"] != fakeSID {
		t.Errorf("expected sid=%s, got %v", fakeSID, d["sid"])
	}
}

// ---------- Join flow ----------

func TestSecondViewerSpectates(t *testing.T) {
	ts := startTestServer(t)

	c1 := dialWS(t, ts.wsURL)
	sid := createSession(t, c1, "TestBattle", "training")
	welcome := join(t, c1, "Alice", sid)
	if welcome["pilot"] != true {
		t.Error("expected first viewer to fly")
	}
	if welcome["level"] != "training" {
		t.Errorf("expected level training, got %v", welcome["level"])
	}

	c2 := dialWS(t, ts.wsURL)
	welcome = join(t, c2, "Bob", sid)
	if welcome["pilot"] != false {
		t.Error("expected second viewer to spectate")
	}
}

func TestJoinNonExistentSession(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	sendMsg(t, c, MsgJoin, map[string]string{"name": "Lost", "sid": uuid.NewString()})

	if env := readEnvelope(t, c); env.T != MsgError {
		t.Fatalf("expected error, got %s", env.T)
	}
}

func TestCreateUnknownLevel(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	sendMsg(t, c, MsgCreate, map[string]string{"sname": "Arena", "level": "nowhere"})

	env := readEnvelope(t, c)
	if env.T != MsgError {
		t.Fatalf("expected error, got %s", env.T)
	}
	if msg, _ := dataMap(t, env)["msg"].(string); !strings.Contains(msg, "unknown level") {
		t.Errorf("expected unknown level error, got %q", msg)
	}
}

// ---------- Gameplay over the wire ----------

func TestSnapshotsStream(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	createAndJoin(t, c, "Alice", "Arena")

	gs := readStateWhere(t, c, func(gs GameState) bool {
		return gs.Phase == "playing" && gs.Tick > 0
	})
	if gs.HUD.Lives != 3 {
		t.Errorf("expected 3 lives, got %d", gs.HUD.Lives)
	}
	if gs.HUD.Wave != 1 {
		t.Errorf("expected wave 1, got %d", gs.HUD.Wave)
	}
}

func TestBinaryInputMovesPilot(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	createAndJoin(t, c, "Alice", "Arena")

	playerX := func(gs GameState) (float32, bool) {
		for _, e := range gs.Entities {
			if sim.Kind(e.Kind) == sim.KindPlayer {
				return e.X, true
			}
		}
		return 0, false
	}
	gs := readStateWhere(t, c, func(gs GameState) bool { return gs.Phase == "playing" })
	startX, ok := playerX(gs)
	if !ok {
		t.Fatal("no player in snapshot")
	}

	if err := c.WriteMessage(websocket.BinaryMessage, []byte{binInput, flagRight}); err != nil {
		t.Fatalf("write WS: %v", err)
	}
	readStateWhere(t, c, func(gs GameState) bool {
		x, ok := playerX(gs)
		return ok && x > startX+20
	})
}

func TestBestScore(t *testing.T) {
	ts := startTestServer(t)
	ts.hub.db.SaveRun("gauntlet", "Alice", sim.LevelSummary{Score: 4200})

	c := dialWS(t, ts.wsURL)
	sendMsg(t, c, MsgBest, map[string]string{"level": "gauntlet"})

	d := dataMap(t, readUntil(t, c, MsgBestOK))
	if d["score"].(float64) != 4200 || d["plays"].(float64) != 1 {
		t.Errorf("expected best 4200 over 1 play, got %v", d)
	}
}

// ---------- Session create + leave lifecycle ----------

func TestCreateAndLeaveSession(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	sid := createAndJoin(t, c, "Solo", "TempBattle")

	c2 := dialWS(t, ts.wsURL)
	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readUntil(t, c2, MsgChecked))["exists"] != true {
		t.Fatal("session should exist")
	}

	sendMsg(t, c, MsgLeave, nil)
	time.Sleep(50 * time.Millisecond)

	sendMsg(t, c2, MsgCheck, map[string]string{"sid": sid})
	if dataMap(t, readUntil(t, c2, MsgChecked))["exists"] != false {
		t.Error("session should close when its last viewer leaves")
	}
}

func TestDisconnectClosesSession(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	sid := createAndJoin(t, c, "Solo", "Arena")
	c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ts.hub.sessions.GetSession(sid) == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("session should close after its only viewer disconnects")
}

// ---------- Session list ----------

func TestListSessions(t *testing.T) {
	ts := startTestServer(t)

	c := dialWS(t, ts.wsURL)
	if sessions := listSessions(t, c); len(sessions) != 0 {
		t.Errorf("expected 0 sessions, got %d", len(sessions))
	}

	c2 := dialWS(t, ts.wsURL)
	createAndJoin(t, c2, "P1", "Arena1")

	sessions := listSessions(t, c)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Name != "Arena1" {
		t.Errorf("expected session name Arena1, got %s", sessions[0].Name)
	}
	if sessions[0].Viewers != 1 {
		t.Errorf("expected 1 viewer, got %d", sessions[0].Viewers)
	}
	if sessions[0].Level != DefaultLevel {
		t.Errorf("expected level %s, got %s", DefaultLevel, sessions[0].Level)
	}
}
