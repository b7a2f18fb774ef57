package ws

import (
	"context"
	"encoding/json"
	"sync"
)

// 서버가 편집 화면으로 밀어주는 이벤트 종류
const (
	EventNotice        = "notice"
	EventContentUpdate = "content_update"
	EventPresence      = "presence"
)

// Event represents a real-time event sent via WebSocket
type Event struct {
	Type    string      `json:"type"`    // "notice", "content_update", "presence"
	Payload interface{} `json:"payload"` // event-specific data
}

// Hub manages WebSocket clients grouped by case.
// 인스턴스 간 전파는 collab 브로커가 맡고, 허브는 로컬 연결만 관리한다.
type Hub struct {
	// Registered clients grouped by case ID
	rooms map[string]map[*Client]bool

	// Register/unregister channels
	register   chan *Client
	unregister chan *Client

	// Broadcast to every client watching a case
	broadcast chan *roomEvent

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	// Called after the last client of a case disconnects
	onEmpty func(caseID string)
}

type roomEvent struct {
	CaseID string
	Skip   *Client // 보낸 클라이언트 자신은 제외
	Event  *Event
}

// NewHub creates a new Hub. onEmpty는 nil일 수 있다.
func NewHub(onEmpty func(caseID string)) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		ctx:        ctx,
		cancel:     cancel,
		onEmpty:    onEmpty,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.caseID] == nil {
				h.rooms[client.caseID] = make(map[*Client]bool)
			}
			h.rooms[client.caseID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			var empty bool
			h.mu.Lock()
			if clients, ok := h.rooms[client.caseID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.caseID)
						empty = true
					}
				}
			}
			h.mu.Unlock()

			if empty && h.onEmpty != nil {
				h.onEmpty(client.caseID)
			}

		case msg := <-h.broadcast:
			// 송신 큐가 가득 찬 클라이언트는 여기서 제거되므로 쓰기 잠금이 필요하다
			h.mu.Lock()
			if clients, ok := h.rooms[msg.CaseID]; ok {
				data, err := json.Marshal(msg.Event)
				if err == nil {
					for client := range clients {
						if client == msg.Skip {
							continue
						}
						select {
						case client.send <- data:
						default:
							close(client.send)
							delete(clients, client)
						}
					}
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			return
		}
	}
}

// SendToCase sends an event to every client watching a case
func (h *Hub) SendToCase(caseID string, event *Event) {
	h.broadcast <- &roomEvent{CaseID: caseID, Event: event}
}

// SendToPeers sends an event to every client of a case except the sender
func (h *Hub) SendToPeers(sender *Client, event *Event) {
	h.broadcast <- &roomEvent{CaseID: sender.caseID, Skip: sender, Event: event}
}

// ClientCount returns the number of open connections for a case
func (h *Hub) ClientCount(caseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[caseID])
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.cancel()
}
