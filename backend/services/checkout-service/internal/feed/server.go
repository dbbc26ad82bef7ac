package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to feed subscriptions.
type Server struct {
	hub          *Hub
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds ws server.
func NewServer(hub *Hub, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		hub:          hub,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close disconnects every subscriber.
func (s *Server) Close() {
	s.cancel()
}

// Serve upgrades the request, sends initial as the first message and keeps the
// connection subscribed to sessionID until either side closes.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, sessionID string, initial interface{}) {
	first, err := json.Marshal(initial)
	if err != nil {
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConnection(sessionID, ws, s.writeTimeout, s.pingInterval, s.logger, s.hub.remove)
	conn.Send(first)
	s.hub.add(conn)

	go conn.Start(s.ctx)
	s.logger.Debug("feed subscriber connected", zap.String("session_id", sessionID))
}
