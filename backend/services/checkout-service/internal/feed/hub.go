// Package feed pushes session snapshots to websocket subscribers.
package feed

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Hub tracks subscriber connections per session.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[*Connection]struct{}
	gauge  prometheus.Gauge
	logger *zap.Logger
}

// NewHub builds hub. gauge may be nil.
func NewHub(gauge prometheus.Gauge, logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[*Connection]struct{}),
		gauge:  gauge,
		logger: logger,
	}
}

func (h *Hub) add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[conn.SessionID()]
	if !ok {
		set = make(map[*Connection]struct{})
		h.conns[conn.SessionID()] = set
	}
	set[conn] = struct{}{}
	if h.gauge != nil {
		h.gauge.Inc()
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[conn.SessionID()]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, conn.SessionID())
	}
	if h.gauge != nil {
		h.gauge.Dec()
	}
}

// Subscribers returns the number of open connections for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}

// Publish sends payload as JSON to every subscriber of sessionID.
func (h *Hub) Publish(sessionID string, payload interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.conns[sessionID]
	if len(set) == 0 {
		return
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode feed message", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	for conn := range set {
		conn.Send(msg)
	}
}
