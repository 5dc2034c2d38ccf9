package hub

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"fleetportal/internal/domain"
	"fleetportal/internal/logger"
	"fleetportal/internal/statuscache"
)

const broadcastQueueSize = 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the envelope pushed to dashboard clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// SnapshotFunc returns the current fleet state, replayed to a client right
// after it connects so dashboards render without waiting a full report cycle.
type SnapshotFunc func() map[string]*domain.StatusReport

// Hub fans live fleet events out to connected dashboard websockets.
// Registration, unregistration and broadcast all funnel through Run's
// select loop, so the client set needs no lock.
type Hub struct {
	logger    logger.Logger
	snapshots SnapshotFunc

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stop       chan struct{}
	done       chan struct{}
}

func New(log logger.Logger, snapshots SnapshotFunc) *Hub {
	return &Hub{
		logger:     log,
		snapshots:  snapshots,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastQueueSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.replaySnapshot(client)
			h.logger.Debug("dashboard client connected", logger.Int("clients", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than stall the fan-out.
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropped slow dashboard client")
				}
			}

		case <-h.stop:
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

// replaySnapshot seeds a fresh connection with the latest report for every
// host. Runs on the hub goroutine; the client's send buffer absorbs it.
func (h *Hub) replaySnapshot(client *Client) {
	if h.snapshots == nil {
		return
	}
	raw, err := json.Marshal(Message{Type: "snapshot", Payload: h.snapshots()})
	if err != nil {
		h.logger.Error("marshal snapshot replay", logger.Error(err))
		return
	}
	select {
	case client.send <- raw:
	default:
	}
}

// BroadcastEvent marshals a typed envelope and queues it for every client.
// The queue is bounded; when it is full the event is dropped, never blocking
// the caller.
func (h *Hub) BroadcastEvent(eventType string, payload any) {
	raw, err := json.Marshal(Message{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error("marshal hub event", logger.String("type", eventType), logger.Error(err))
		return
	}
	select {
	case h.broadcast <- raw:
	default:
		h.logger.Warn("hub broadcast queue full, event dropped", logger.String("type", eventType))
	}
}

// OnStatus adapts the hub to the status cache's subscriber contract. A nil
// report means the snapshot was evicted (host deleted).
func (h *Hub) OnStatus(ev statuscache.Event) {
	if ev.Report == nil {
		h.BroadcastEvent("status_removed", map[string]any{
			"host_id": ev.HostID,
		})
		return
	}
	h.BroadcastEvent("status_update", map[string]any{
		"host_id": ev.HostID,
		"report":  ev.Report,
	})
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logger.Error(err))
		return
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
