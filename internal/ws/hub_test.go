package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubHarness runs a hub behind a test HTTP server and tracks server-side clients
type hubHarness struct {
	hub    *Hub
	server *httptest.Server

	mu      sync.Mutex
	clients []*Client
	emptied []string
}

func newHubHarness(t *testing.T) *hubHarness {
	t.Helper()

	h := &hubHarness{}
	h.hub = NewHub(func(caseID string) {
		h.mu.Lock()
		h.emptied = append(h.emptied, caseID)
		h.mu.Unlock()
	})
	go h.hub.Run()
	t.Cleanup(h.hub.Stop)

	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		client := NewClient(h.hub, conn, r.URL.Query().Get("case"), r.URL.Query().Get("client"), nil)
		h.mu.Lock()
		h.clients = append(h.clients, client)
		h.mu.Unlock()

		h.hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(h.server.Close)
	return h
}

// dial connects one editor to the harness and returns the connection
func (h *hubHarness) dial(t *testing.T, caseID, clientID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?case=" + caseID + "&client=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// serverClient returns the server-side client with the given editor identity
func (h *hubHarness) serverClient(clientID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		if c.clientID == clientID {
			return c
		}
	}
	return nil
}

func readEvent(t *testing.T, conn *websocket.Conn) *Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return &ev
}

func TestSendToCaseReachesEveryConnection(t *testing.T) {
	h := newHubHarness(t)
	a := h.dial(t, "case-1", "client-a")
	b := h.dial(t, "case-1", "client-b")

	require.Eventually(t, func() bool {
		return h.hub.ClientCount("case-1") == 2
	}, time.Second, 5*time.Millisecond)

	h.hub.SendToCase("case-1", &Event{Type: EventNotice, Payload: "저장되었습니다"})

	assert.Equal(t, EventNotice, readEvent(t, a).Type)
	assert.Equal(t, EventNotice, readEvent(t, b).Type)
}

func TestSendToPeersSkipsSender(t *testing.T) {
	h := newHubHarness(t)
	sender := h.dial(t, "case-1", "client-a")
	peer := h.dial(t, "case-1", "client-b")

	require.Eventually(t, func() bool {
		return h.hub.ClientCount("case-1") == 2
	}, time.Second, 5*time.Millisecond)

	sent := h.serverClient("client-a")
	require.NotNil(t, sent)
	h.hub.SendToPeers(sent, &Event{Type: EventContentUpdate, Payload: "<p>변경</p>"})

	ev := readEvent(t, peer)
	assert.Equal(t, EventContentUpdate, ev.Type)

	// 보낸 쪽에는 아무것도 도착하지 않는다
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := sender.ReadMessage()
	assert.Error(t, err)
}

func TestRoomsIsolatedByCase(t *testing.T) {
	h := newHubHarness(t)
	one := h.dial(t, "case-1", "client-a")
	other := h.dial(t, "case-2", "client-b")

	require.Eventually(t, func() bool {
		return h.hub.ClientCount("case-1") == 1 && h.hub.ClientCount("case-2") == 1
	}, time.Second, 5*time.Millisecond)

	h.hub.SendToCase("case-1", &Event{Type: EventPresence, Payload: "client-a"})

	assert.Equal(t, EventPresence, readEvent(t, one).Type)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestOnEmptyFiresAfterLastDisconnect(t *testing.T) {
	h := newHubHarness(t)
	a := h.dial(t, "case-1", "client-a")
	b := h.dial(t, "case-1", "client-b")

	require.Eventually(t, func() bool {
		return h.hub.ClientCount("case-1") == 2
	}, time.Second, 5*time.Millisecond)

	a.Close()
	require.Eventually(t, func() bool {
		return h.hub.ClientCount("case-1") == 1
	}, time.Second, 5*time.Millisecond)

	h.mu.Lock()
	assert.Empty(t, h.emptied, "연결이 남아 있는 동안에는 비움 콜백이 불리지 않는다")
	h.mu.Unlock()

	b.Close()
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.emptied) == 1 && h.emptied[0] == "case-1"
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, h.hub.ClientCount("case-1"))
}
