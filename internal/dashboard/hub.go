package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WriteTimeout bounds each push to a browser. A client that stops reading
// fails its write and is dropped.
const WriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served to any origin
	},
}

// Hub pushes dashboard pages to connected browsers. All socket writes happen
// on the run goroutine.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	initial    func() ([]byte, error)
	logger     *logrus.Logger

	writeTimeout time.Duration
}

// NewHub creates a hub. initial, if set, produces the payload sent to each
// client as soon as it connects.
func NewHub(initial func() ([]byte, error), logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		initial:    initial,
		logger:     logger,

		writeTimeout: WriteTimeout,
	}
}

func (h *Hub) Start() {
	go h.run()
}

// Stop disconnects every client and ends the run loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithField("clients", count).Info("Dashboard client connected")

			if h.initial != nil {
				payload, err := h.initial()
				if err != nil {
					h.logger.WithError(err).Error("Failed to build initial dashboard payload")
					continue
				}
				h.send(client, payload)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithField("clients", count).Info("Dashboard client disconnected")

		case payload := <-h.broadcast:
			h.mutex.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()

			for _, client := range clients {
				h.send(client, payload)
			}
		}
	}
}

func (h *Hub) send(client *websocket.Conn, payload []byte) {
	if err := client.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		h.logger.WithError(err).Warn("Failed to set dashboard write deadline")
	}
	if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.logger.WithError(err).Warn("Failed to push dashboard update, dropping client")
		h.mutex.Lock()
		delete(h.clients, client)
		h.mutex.Unlock()
		client.Close()
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade dashboard connection")
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Browsers never send anything meaningful; reading only detects close.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.WithError(err).Warn("Dashboard websocket error")
				}
				return
			}
		}
	}()
}

// Broadcast queues payload for every connected client. It drops the update
// when the hub is stopped or hopelessly behind.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.logger.Warn("Dashboard broadcast buffer full, dropping update")
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
