package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/internal/repository/directory"
	"github.com/sharetube/watchsync/internal/repository/directory/sqlite"
	playbackredis "github.com/sharetube/watchsync/internal/repository/playback/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *AppConfig {
	return &AppConfig{
		Secret:            "secret",
		Host:              "127.0.0.1",
		Port:              8080,
		LogLevel:          "info",
		RedisHost:         "localhost",
		RedisPort:         6379,
		DirectoryDriver:   DriverSQLite,
		SQLitePath:        ":memory:",
		StateTTL:          time.Hour,
		EventLogLimit:     1000,
		WSEventsPerMinute: 100,
		WSLimiterCapacity: 1000,
		TokenTTL:          time.Hour,
	}
}

func TestAppConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	for name, mutate := range map[string]func(*AppConfig){
		"missing secret":   func(c *AppConfig) { c.Secret = "" },
		"bad log level":    func(c *AppConfig) { c.LogLevel = "loud" },
		"unknown driver":   func(c *AppConfig) { c.DirectoryDriver = "mongo" },
		"postgres no url":  func(c *AppConfig) { c.DirectoryDriver = DriverPostgres },
		"zero event limit": func(c *AppConfig) { c.EventLogLimit = 0 },
		"zero ws limit":    func(c *AppConfig) { c.WSEventsPerMinute = 0 },
		"zero token ttl":   func(c *AppConfig) { c.TokenTTL = 0 },
		"port":             func(c *AppConfig) { c.Port = 70000 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testApp struct {
	srv    *httptest.Server
	dir    *sqlite.Repo
	tokens *auth.Tokens
	clock  *testClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := validConfig()

	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	dir, err := sqlite.Open(cfg.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })
	require.NoError(t, dir.EnsureSchema(context.Background()))

	logger, err := NewLogger(io.Discard, cfg.LogLevel)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	components, err := NewComponents(cfg, Deps{
		Logger:    logger,
		Playback:  playbackredis.NewRepo(rc, playbackredis.Config{StateTTL: cfg.StateTTL, EventLogLimit: cfg.EventLogLimit}),
		Directory: dir,
		Clock:     clock.Now,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(components.Handler)
	t.Cleanup(func() {
		require.NoError(t, components.Close(context.Background()))
		srv.Close()
	})

	return &testApp{srv: srv, dir: dir, tokens: auth.NewTokens(cfg.Secret, cfg.TokenTTL), clock: clock}
}

func (a *testApp) user(t *testing.T, id string) string {
	t.Helper()
	_, err := a.dir.CreateUser(context.Background(), &directory.CreateUserParams{
		ID: id, Username: id, Name: id, CreatedAt: a.clock.Now(),
	})
	require.NoError(t, err)

	token, err := a.tokens.Issue(id)
	require.NoError(t, err)
	return token
}

func (a *testApp) createRoom(t *testing.T, token string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"name":            "friday stream",
		"type":            "EXTERNAL_LINK",
		"streamUrl":       "https://cdn.example.com/films/feature.mp4",
		"maxParticipants": 10,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/api/v1/rooms", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Data.ID
}

func (a *testApp) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(a.srv.URL, "http")+"/ws", header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}))
}

func expect(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var out struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&out))
		if out.Type == msgType {
			return out.Payload
		}
	}
}

func TestWatchPartyEndToEnd(t *testing.T) {
	a := newTestApp(t)
	hostToken := a.user(t, "alice")
	viewerToken := a.user(t, "bob")
	lateToken := a.user(t, "carol")

	roomID := a.createRoom(t, hostToken)

	host := a.dial(t, hostToken)
	send(t, host, "join-room", map[string]any{"roomId": roomID})
	state := expect(t, host, "room-state")
	assert.EqualValues(t, 0, state["videoPosition"])
	assert.Equal(t, false, state["isPlaying"])

	viewer := a.dial(t, viewerToken)
	send(t, viewer, "join-room", map[string]any{"roomId": roomID})
	expect(t, viewer, "room-state")

	send(t, host, "video-play", map[string]any{"roomId": roomID, "videoPosition": 0, "isPlaying": true})
	played := expect(t, viewer, "video-play")
	assert.Equal(t, true, played["isPlaying"])

	a.clock.Advance(10 * time.Second)

	late := a.dial(t, lateToken)
	send(t, late, "join-room", map[string]any{"roomId": roomID})
	state = expect(t, late, "room-state")
	assert.InDelta(t, 10, state["videoPosition"], 0.001)

	req, err := http.NewRequest(http.MethodGet, a.srv.URL+"/api/v1/rooms/"+roomID+"/online", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var online struct {
		Data []auth.Identity `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&online))
	assert.Len(t, online.Data, 3)
}
