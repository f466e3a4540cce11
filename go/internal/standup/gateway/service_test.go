package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/standup/go/internal/standup/events"
)

type fakeValidator struct {
	mu      sync.Mutex
	invalid map[string]bool
	err     error
	calls   []string
}

func (v *fakeValidator) ValidateInstance(_ context.Context, instanceID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, instanceID)
	if v.err != nil {
		return false, v.err
	}
	return !v.invalid[instanceID], nil
}

func (v *fakeValidator) Calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...)
}

func (v *fakeValidator) configure(fn func(v *fakeValidator)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v)
}

type testGateway struct {
	server    *httptest.Server
	validator *fakeValidator
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	validator := &fakeValidator{invalid: map[string]bool{}}
	cfg := DefaultConfig()
	// start immediately so the view is deterministic
	cfg.LeadIn = 0

	svc := NewService(cfg, validator, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})
	return &testGateway{server: server, validator: validator}
}

func (g *testGateway) dial(t *testing.T, instanceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/api/ws/" + instanceID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func readState(t *testing.T, conn *websocket.Conn) events.StateView {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg events.StateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, events.TypeState, msg.Type)
	return msg.State
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestConnectReceivesInitialState(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t, "i-1")

	state := readState(t, conn)
	assert.Empty(t, state.Members)
	assert.Nil(t, state.StartedAt)
	assert.Equal(t, int64(0), state.CurrentOffset)
	assert.Equal(t, []string{"i-1"}, g.validator.Calls())
}

func TestJoinBroadcastsToSession(t *testing.T) {
	g := newTestGateway(t)
	a := g.dial(t, "i-1")
	readState(t, a)
	b := g.dial(t, "i-1")
	readState(t, b)
	other := g.dial(t, "i-2")
	readState(t, other)

	send(t, a, `{"type":"join","userId":"alice"}`)

	assert.Equal(t, []string{"alice"}, readState(t, a).Members)
	assert.Equal(t, []string{"alice"}, readState(t, b).Members)

	// a different session sees nothing
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestInvalidInstanceIsClosed(t *testing.T) {
	tests := []struct {
		name      string
		configure func(v *fakeValidator)
	}{
		{name: "rejected", configure: func(v *fakeValidator) { v.invalid["bad"] = true }},
		{name: "validator error", configure: func(v *fakeValidator) { v.err = errors.New("discord unavailable") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t)
			g.validator.configure(tt.configure)
			conn := g.dial(t, "bad")

			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := conn.ReadMessage()
			require.Error(t, err)
			assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))

			stats := getStats(t, g)
			assert.Equal(t, 0, stats.ActiveSessions)
			assert.Equal(t, 0, stats.TotalConnections)
		})
	}
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t, "i-1")
	readState(t, conn)

	send(t, conn, `not json`)
	send(t, conn, `{"userId":"alice"}`)
	send(t, conn, `{"type":"join"}`)
	send(t, conn, `{"type":"join","userId":"alice"}`)

	assert.Equal(t, []string{"alice"}, readState(t, conn).Members)
}

func TestStartOverSocket(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t, "i-1")
	readState(t, conn)

	send(t, conn, `{"type":"join","userId":"alice"}`)
	readState(t, conn)
	send(t, conn, `{"type":"start","duration":45}`)

	state := readState(t, conn)
	require.NotNil(t, state.StartedAt)
	require.NotNil(t, state.Duration)
	assert.Equal(t, 45, *state.Duration)
	assert.False(t, state.IsPaused)
}

func TestPopcornAndEcho(t *testing.T) {
	g := newTestGateway(t)
	a := g.dial(t, "i-1")
	readState(t, a)
	b := g.dial(t, "i-1")
	readState(t, b)

	send(t, a, `{"type":"popcorn","x":0.25,"y":0.75}`)
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.JSONEq(t, `"popcorn"`, string(msg["type"]))
		assert.JSONEq(t, `0.25`, string(msg["x"]))
		assert.JSONEq(t, `0.75`, string(msg["y"]))
	}

	send(t, a, `{"type":"echo","hello":"world"}`)
	msg := readMessage(t, a)
	assert.JSONEq(t, `"echo"`, string(msg["type"]))
	assert.JSONEq(t, `{"type":"echo","hello":"world"}`, string(msg["message"]))
}

func TestDisconnectRemovesMemberBeforeStart(t *testing.T) {
	g := newTestGateway(t)
	a := g.dial(t, "i-1")
	readState(t, a)
	b := g.dial(t, "i-1")
	readState(t, b)

	send(t, a, `{"type":"join","userId":"alice"}`)
	readState(t, a)
	assert.Equal(t, []string{"alice"}, readState(t, b).Members)

	require.NoError(t, a.Close())
	assert.Empty(t, readState(t, b).Members)
}

func TestSessionStateEndpoint(t *testing.T) {
	g := newTestGateway(t)

	resp, err := http.Get(g.server.URL + "/api/sessions/i-1/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn := g.dial(t, "i-1")
	readState(t, conn)
	send(t, conn, `{"type":"join","userId":"alice"}`)
	readState(t, conn)

	resp, err = http.Get(g.server.URL + "/api/sessions/i-1/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body SessionStateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "i-1", body.InstanceID)
	assert.Equal(t, []string{"alice"}, body.State.Members)

	stats := getStats(t, g)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, []string{"i-1"}, stats.Sessions)
}

func TestSessionEndsWhenLastConnectionLeaves(t *testing.T) {
	g := newTestGateway(t)
	conn := g.dial(t, "i-1")
	readState(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		stats, err := fetchStats(g.server.URL)
		return err == nil && stats.ActiveSessions == 0 && stats.TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func getStats(t *testing.T, g *testGateway) Stats {
	t.Helper()
	stats, err := fetchStats(g.server.URL)
	require.NoError(t, err)
	return stats
}

func fetchStats(baseURL string) (Stats, error) {
	resp, err := http.Get(baseURL + "/ws/stats")
	if err != nil {
		return Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Stats{}, errors.New(resp.Status)
	}

	var stats Stats
	err = json.NewDecoder(resp.Body).Decode(&stats)
	return stats, err
}
