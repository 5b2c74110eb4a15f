package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/playontable/backend/internal/models"
	"github.com/playontable/backend/internal/relay"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{5}$`)

func newTestServer(t *testing.T, policy relay.Policy) (*httptest.Server, *relay.Registry) {
	t.Helper()
	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(registry, policy, nil, zap.NewNop())
	h := NewHandlers(dispatcher, registry, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", h.RelayWS)
	mux.HandleFunc("/healthz", h.Health)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readCode(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, models.HookCode, env.Hook)
	var code string
	require.NoError(t, json.Unmarshal(env.Data, &code))
	require.Regexp(t, codePattern, code)
	return code
}

func envelope(hook string, data any) models.Envelope {
	env := models.Envelope{Hook: hook}
	if data != nil {
		raw, _ := json.Marshal(data)
		env.Data = raw
	}
	return env
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRelayEndToEnd(t *testing.T) {
	srv, registry := newTestServer(t, relay.DefaultPolicy())

	host := dial(t, srv)
	code := readCode(t, host)

	guest := dial(t, srv)
	readCode(t, guest) // the guest's own throwaway room

	// Join codes are case-folded before lookup.
	require.NoError(t, guest.WriteJSON(envelope("join", strings.ToLower(code))))
	room, ok := registry.Lookup(code)
	require.True(t, ok)
	waitFor(t, func() bool { return room.MemberCount() == 2 })

	require.NoError(t, host.WriteJSON(envelope("room", nil)))
	assert.Equal(t, models.HookPlay, readEnvelope(t, host).Hook)
	assert.Equal(t, models.HookPlay, readEnvelope(t, guest).Hook)

	// A latecomer is turned away and the room is untouched.
	third := dial(t, srv)
	readCode(t, third)
	require.NoError(t, third.WriteJSON(envelope("join", code)))
	env := readEnvelope(t, third)
	require.Equal(t, models.HookFail, env.Hook)
	var reason string
	require.NoError(t, json.Unmarshal(env.Data, &reason))
	assert.Equal(t, "play", reason)
	assert.Equal(t, 2, room.MemberCount())
}

func TestRelayForwarding(t *testing.T) {
	srv, registry := newTestServer(t, relay.DefaultPolicy())

	host := dial(t, srv)
	code := readCode(t, host)
	guest := dial(t, srv)
	readCode(t, guest)
	require.NoError(t, guest.WriteJSON(envelope("join", code)))
	room, _ := registry.Lookup(code)
	waitFor(t, func() bool { return room.MemberCount() == 2 })

	// A drag reaches the other member verbatim but never echoes back;
	// the next message the sender sees is the roll, proving the drag
	// skipped it.
	require.NoError(t, guest.WriteJSON(envelope("drag", map[string]int{"x": 4, "y": 7})))
	env := readEnvelope(t, host)
	assert.Equal(t, "drag", env.Hook)
	assert.JSONEq(t, `{"x":4,"y":7}`, string(env.Data))

	require.NoError(t, guest.WriteJSON(envelope("roll", 18)))
	env = readEnvelope(t, guest)
	assert.Equal(t, "roll", env.Hook)
	env = readEnvelope(t, host)
	assert.Equal(t, "roll", env.Hook)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	srv, registry := newTestServer(t, relay.DefaultPolicy())

	host := dial(t, srv)
	code := readCode(t, host)
	guest := dial(t, srv)
	readCode(t, guest)
	require.NoError(t, guest.WriteJSON(envelope("join", code)))
	room, _ := registry.Lookup(code)
	waitFor(t, func() bool { return room.MemberCount() == 2 })

	// An abrupt close is equivalent to leaving.
	guest.Close()
	waitFor(t, func() bool { return room.MemberCount() == 1 })

	// The last member out releases the code.
	host.Close()
	waitFor(t, func() bool { return registry.Len() == 0 })
}

func TestMalformedFrameKeepsStreamOpen(t *testing.T) {
	srv, _ := newTestServer(t, relay.DefaultPolicy())

	conn := dial(t, srv)
	readCode(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	// The stream survives: a make request still gets its denial reply.
	require.NoError(t, conn.WriteJSON(envelope("make", nil)))
	env := readEnvelope(t, conn)
	assert.Equal(t, models.HookFail, env.Hook)
}

func TestKeepaliveProbe(t *testing.T) {
	srv, _ := newTestServer(t, relay.DefaultPolicy())

	conn := dial(t, srv)
	pong := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, conn.WriteMessage(websocket.PingMessage, nil))
	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("no pong within deadline")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, relay.DefaultPolicy())

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
