package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// IncidentEvent describes websocket payloads emitted when a prediction fails
// for a reason an operator must look at.
type IncidentEvent struct {
	Type      string       `json:"type"`
	Incident  *IncidentDTO `json:"incident,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// IncidentNotifier keeps track of active websocket clients and broadcasts incidents.
type IncidentNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *IncidentEvent
}

// NewIncidentNotifier constructs a notifier instance.
func NewIncidentNotifier() *IncidentNotifier {
	return &IncidentNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the latest incident.
func (n *IncidentNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.last
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the socket.
func (n *IncidentNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
// Writes happen outside the notifier lock; clients that fail are dropped.
func (n *IncidentNotifier) Broadcast(event IncidentEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "incident" {
		snapshot := event
		n.last = &snapshot
	}
	clients := make([]*wsClient, 0, len(n.clients))
	for client := range n.clients {
		clients = append(clients, client)
	}
	n.mu.Unlock()

	for _, client := range clients {
		if err := client.writeJSON(event); err != nil {
			n.Unregister(client)
		}
	}
}

// Last returns a copy of the most recent incident event, if any.
func (n *IncidentNotifier) Last() *IncidentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return nil
	}
	copy := *n.last
	return &copy
}

// Clients reports the number of connected websocket clients.
func (n *IncidentNotifier) Clients() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
