package websocket

import (
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/cartoprint/api/internal/model"
)

// Client represents a WebSocket client subscribed to one print job. The
// stream ends by closing done, never Send: the reader loop may still queue
// pong replies after the terminal broadcast, and sending on a closed channel
// would panic the connection goroutine.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte

	done chan struct{}
	once sync.Once
}

// NewClient creates a client for one job subscription.
func NewClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, 256),
		done:  make(chan struct{}),
	}
}

// close ends the stream. Idempotent.
func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// trySend queues a message for the writer. It reports false when the stream
// has ended or the client cannot keep up; it never blocks and never panics.
func (c *Client) trySend(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to job subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast. Final ends every
// subscriber's stream after delivery: once a job is finished there is
// nothing more to stream.
type BroadcastMessage struct {
	JobID   string
	Message []byte
	Final   bool
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.clients, client.JobID)
					}
				}
			}
			h.mu.Unlock()
			client.close()
			log.Printf("Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.JobID]; ok {
				for client := range clients {
					// Drop slow consumers; end every stream after the
					// terminal message.
					if !client.trySend(msg.Message) || msg.Final {
						client.close()
						delete(clients, client)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.JobID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastProgress sends a progress update to all job subscribers
func (h *Hub) BroadcastProgress(jobID int64, progress float64, status model.JobStatus) {
	msg := model.WSProgressMessage{
		Type:     model.WSMessageTypeProgress,
		JobID:    jobID,
		Status:   status,
		Progress: progress,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal progress message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		JobID:   jobKey(jobID),
		Message: data,
	}
}

// BroadcastComplete sends the terminal status to all job subscribers and
// ends their streams.
func (h *Hub) BroadcastComplete(jobID int64, result interface{}) {
	msg := model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		JobID:  jobID,
		Result: result,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal complete message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		JobID:   jobKey(jobID),
		Message: data,
		Final:   true,
	}
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID int64, code, message string) {
	msg := model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		JobID:   jobKey(jobID),
		Message: data,
	}
}

func jobKey(jobID int64) string {
	return strconv.FormatInt(jobID, 10)
}

// Subscribe registers a client for a job, then replays the current job
// state. The snapshot runs only after registration: a terminal broadcast
// landing while the subscriber connects is either delivered live through
// the hub or observed by the snapshot itself, so the stream always ends
// with the finished status. snapshot returns the message to replay (nil for
// none) and whether the job is already finished.
func (h *Hub) Subscribe(jobID int64, conn *websocket.Conn, snapshot func() (data []byte, final bool)) *Client {
	client := NewClient(jobKey(jobID), conn)
	h.Register(client)
	if snapshot != nil {
		data, final := snapshot()
		if data != nil {
			client.trySend(data)
		}
		if final {
			client.close()
		}
	}
	return client
}

// HandleConnection pumps one WebSocket connection for a job subscription.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID int64, snapshot func() (data []byte, final bool)) {
	client := h.Subscribe(jobID, c, snapshot)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message := <-client.Send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-client.done:
				// Flush whatever was queued before the stream ended, then
				// close the connection.
				for {
					select {
					case message := <-client.Send:
						if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
							return
						}
					default:
						c.WriteMessage(websocket.CloseMessage, []byte{})
						return
					}
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			client.trySend(pong)
		}
	}
}
