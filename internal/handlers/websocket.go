// -----------------------------------------------------------------------
// WebSocket Handler - pushes job status snapshots to connected clients,
// throttling progress updates so large batches do not flood the socket
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/noeticlabs/websearch/internal/services/crawler"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local daemon; clients connect from editors and CLIs
	},
}

// WebSocketHandler fans job events out to every connected client.
type WebSocketHandler struct {
	logger      arbor.ILogger
	mu          sync.RWMutex
	clients     map[*websocket.Conn]*sync.Mutex
	progressCap *rate.Limiter
}

// NewWebSocketHandler creates the handler and registers it as the job
// event sink.
func NewWebSocketHandler(jobs *crawler.JobService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:      logger,
		clients:     make(map[*websocket.Conn]*sync.Mutex),
		progressCap: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
	jobs.OnEvent(h.Broadcast)
	return h
}

// HandleWebSocket upgrades the connection and holds it open until the
// client goes away. The read loop exists only to notice the close.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends a job event to every client. Progress updates are rate
// limited; terminal transitions always go out.
func (h *WebSocketHandler) Broadcast(event crawler.JobEvent) {
	if !event.Status.State.Terminal() && !h.progressCap.Allow() {
		return
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		conns[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range conns {
		mu.Lock()
		err := conn.WriteJSON(event)
		mu.Unlock()
		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}
	}
}
