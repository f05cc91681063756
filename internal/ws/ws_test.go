package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/WebIDE/backend/internal/terminal"
	"github.com/GriffinCanCode/WebIDE/backend/internal/watcher"
)

type fakeEvents struct {
	mu   sync.Mutex
	subs []chan watcher.Batch
}

func (f *fakeEvents) Subscribe() (<-chan watcher.Batch, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan watcher.Batch, 4)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeEvents) publish(b watcher.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- b
	}
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type testServer struct {
	*httptest.Server
	manager *terminal.Manager
	events  *fakeEvents
}

func newTestServer(t *testing.T, cfg terminal.ManagerConfig, origins []string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if cfg.Spawn.CloseGrace == 0 {
		cfg.Spawn.CloseGrace = 500 * time.Millisecond
	}
	manager := terminal.NewManager(cfg, nil)
	events := &fakeEvents{}
	handler := NewHandler(manager, events, Options{
		AllowedOrigins: origins,
		Conn:           ConnConfig{PingInterval: time.Second},
	})

	router := gin.New()
	router.GET("/ws/term", handler.HandleTerminal)
	router.GET("/ws/events", handler.HandleEvents)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, manager: manager, events: events}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, want string) string {
	t.Helper()
	var out strings.Builder
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for !strings.Contains(out.String(), want) {
		mt, data, err := conn.ReadMessage()
		require.NoError(t, err, "output so far: %q", out.String())
		assert.Equal(t, websocket.BinaryMessage, mt)
		out.Write(data)
	}
	return out.String()
}

func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *websocket.CloseError
		require.True(t, errors.As(err, &closeErr), "expected close frame, got %v", err)
		return closeErr
	}
}

func TestTerminalRoundTrip(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{
		Spawn: terminal.SpawnConfig{Command: []string{"/bin/sh"}},
	}, nil)
	conn := srv.dial(t, "/ws/term")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("echo webide-$((40+2))\n")))
	readUntil(t, conn, "webide-42")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("echo bin-$((1+1))\n")))
	readUntil(t, conn, "bin-2")

	require.Equal(t, 1, srv.manager.Count())
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return srv.manager.Count() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTerminalListsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes-7f3a.md"), []byte("# notes"), 0o644))

	srv := newTestServer(t, terminal.ManagerConfig{
		Spawn: terminal.SpawnConfig{Command: []string{"/bin/sh"}, Dir: dir},
	}, nil)
	conn := srv.dial(t, "/ws/term")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ls\n")))
	assert.Contains(t, readUntil(t, conn, "notes-7f3a.md"), "notes-7f3a.md")
}

func TestTerminalProcessExitClosesNormally(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{
		Spawn: terminal.SpawnConfig{Command: []string{"/bin/sh", "-c", "echo bye; sleep 0.2"}},
	}, nil)
	conn := srv.dial(t, "/ws/term")

	readUntil(t, conn, "bye")
	assert.Equal(t, websocket.CloseNormalClosure, readClose(t, conn).Code)
}

func TestTerminalRejectedOverCap(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{
		MaxSessions: 1,
		Spawn:       terminal.SpawnConfig{Command: []string{"/bin/cat"}},
	}, nil)

	first := srv.dial(t, "/ws/term")
	require.Eventually(t, func() bool {
		infos := srv.manager.List()
		return len(infos) == 1 && infos[0].State == "running"
	}, 5*time.Second, 10*time.Millisecond)

	second := srv.dial(t, "/ws/term")
	closeErr := readClose(t, second)
	assert.Equal(t, websocket.CloseTryAgainLater, closeErr.Code)
	assert.Contains(t, closeErr.Text, "too many terminal sessions")

	require.NoError(t, first.Close())
}

func TestTerminalSpawnFailureClosesWithError(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{
		Spawn: terminal.SpawnConfig{Command: []string{"/nonexistent/shell"}},
	}, nil)
	conn := srv.dial(t, "/ws/term")

	closeErr := readClose(t, conn)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
	assert.LessOrEqual(t, len(closeErr.Text), maxCloseReason)
}

func TestOriginCheck(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{
		Spawn: terminal.SpawnConfig{Command: []string{"/bin/cat"}},
	}, []string{"https://ide.example.com"})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/term"

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://ide.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestEventsStreamBatches(t *testing.T) {
	srv := newTestServer(t, terminal.ManagerConfig{}, nil)
	conn := srv.dial(t, "/ws/events")

	require.Eventually(t, func() bool { return srv.events.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	want := watcher.Batch{
		Events: []watcher.Event{{Op: "write", Path: "src/main.go"}},
		At:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	srv.events.publish(want)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var got watcher.Batch
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, want, got)
}

func TestTruncateReason(t *testing.T) {
	assert.Equal(t, "short", truncateReason("short"))

	long := strings.Repeat("é", 100)
	got := truncateReason(long)
	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(long, got))
}
