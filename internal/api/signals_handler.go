package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// signalHub fans signal lifecycle events out to connected WebSocket clients.
// signalcoord.Coordinator.Events() returns a single channel meant for one
// drain loop, so the server owns exactly one reader and republishes to each
// client's own send channel.
type signalHub struct {
	mu      sync.RWMutex
	clients map[*signalClient]bool
}

type signalClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newSignalHub() *signalHub {
	return &signalHub{clients: make(map[*signalClient]bool)}
}

func (h *signalHub) register(c *signalClient) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Info().Int("total_clients", len(h.clients)).Msg("signal stream client connected")
}

func (h *signalHub) unregister(c *signalClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *signalHub) broadcast(ev arbmodel.SignalEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal signal event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			log.Warn().Msg("dropping slow signal stream client")
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// run drains the coordinator's event channel until it closes.
func (h *signalHub) run(source <-chan arbmodel.SignalEvent) {
	for ev := range source {
		h.broadcast(ev)
	}
}

func (c *signalClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *signalClient) readPump(h *signalHub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("signal stream read error")
			}
			break
		}
	}
}

var signalStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleListSignals returns the currently active signal set as a snapshot.
func (s *Server) handleListSignals(c *gin.Context) {
	if s.coord == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal coordinator not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"signals": s.coord.Active(),
		"dropped": s.coord.Dropped(),
	})
}

// handleSignalStream upgrades to a WebSocket connection and streams signal
// lifecycle events (created, updated, expired, executed) as they occur.
func (s *Server) handleSignalStream(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal coordinator not configured"})
		return
	}

	conn, err := signalStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade signal stream connection")
		return
	}

	client := &signalClient{conn: conn, send: make(chan []byte, 64)}
	s.events.register(client)

	go client.writePump()
	go client.readPump(s.events)
}
