package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tattletale/internal/observerproto"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/world"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(observerproto.BootstrapResponse{
		RunID:  "run-1",
		Seed:   7,
		Actors: []string{"Ada", "Ben", "Cleo"},
	}, Options{
		Describer: func(r kernel.Record) string { return r.Tag + "!" },
	})
	mux := http.NewServeMux()
	s.Register(mux, "/observer")
	hs := httptest.NewServer(mux)
	t.Cleanup(func() {
		s.Close()
		hs.Close()
	})
	return s, hs
}

func dial(t *testing.T, hs *httptest.Server, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.WriteJSON(sub))
	return conn
}

func subscribe(actors ...int) observerproto.SubscribeMsg {
	return observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Actors:          actors,
	}
}

func readTick(t *testing.T, conn *websocket.Conn) observerproto.TickMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg observerproto.TickMsg
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

var sampleEntry = world.TickLogEntry{
	Tick:   4,
	Day:    1,
	Digest: "abc",
	Kernels: []kernel.Record{
		{ID: 10, Tick: 4, Kind: "interaction", Owner: 0, Tag: "chat", Participants: []int{0, 1}, Chance: 0.3},
		{ID: 11, Tick: 4, Kind: "emotion", Owner: 1, Tag: "happy", Value: 0.2, Reasons: []int{10}},
		{ID: 12, Tick: 4, Kind: "interaction", Owner: 2, Tag: "study", Participants: []int{2}},
	},
}

func TestServer_StreamsFilteredTicks(t *testing.T) {
	s, hs := newTestServer(t)
	all := dial(t, hs, subscribe())
	ben := dial(t, hs, subscribe(1))
	require.Eventually(t, func() bool { return s.SessionCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.WriteTick(sampleEntry))

	got := readTick(t, all)
	assert.Equal(t, observerproto.TypeTick, got.Type)
	assert.Equal(t, 4, got.Tick)
	assert.Equal(t, "abc", got.Digest)
	require.Len(t, got.Kernels, 2)
	assert.Equal(t, "chat!", got.Kernels[0].Text)
	assert.Equal(t, 12, got.Kernels[1].ID)

	got = readTick(t, ben)
	require.Len(t, got.Kernels, 1)
	assert.Equal(t, 10, got.Kernels[0].ID)
}

func TestServer_ResubscribeChangesFilter(t *testing.T) {
	s, hs := newTestServer(t)
	conn := dial(t, hs, subscribe(2))
	require.Eventually(t, func() bool { return s.SessionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	sub := subscribe(1)
	sub.Values = true
	require.NoError(t, conn.WriteJSON(sub))

	// The update is applied asynchronously; keep publishing until it shows.
	for i := 0; i < 100; i++ {
		require.NoError(t, s.WriteTick(sampleEntry))
		msg := readTick(t, conn)
		if len(msg.Kernels) == 2 && msg.Kernels[1].ID == 11 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("filter update never applied")
}

func TestServer_RejectsBadHandshake(t *testing.T) {
	s, hs := newTestServer(t)
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "HELLO"}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Zero(t, s.SessionCount())
}

func TestServer_Bootstrap(t *testing.T) {
	s, hs := newTestServer(t)
	require.NoError(t, s.WriteTick(world.TickLogEntry{Tick: 9}))

	resp, err := http.Get(hs.URL + "/observer/bootstrap")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var boot observerproto.BootstrapResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&boot))
	assert.Equal(t, observerproto.Version, boot.ProtocolVersion)
	assert.Equal(t, "run-1", boot.RunID)
	assert.Equal(t, 9, boot.Tick)
	assert.Equal(t, []string{"Ada", "Ben", "Cleo"}, boot.Actors)

	post, err := http.Post(hs.URL+"/observer/bootstrap", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestServer_CloseDisconnectsObservers(t *testing.T) {
	s, hs := newTestServer(t)
	conn := dial(t, hs, subscribe())
	require.Eventually(t, func() bool { return s.SessionCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	s.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return s.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestIsLoopbackRemote(t *testing.T) {
	assert.True(t, isLoopbackRemote("127.0.0.1:5555"))
	assert.True(t, isLoopbackRemote("[::1]:80"))
	assert.False(t, isLoopbackRemote("10.0.0.2:80"))
	assert.False(t, isLoopbackRemote("garbage"))
}
