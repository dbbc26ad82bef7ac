package feed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit   = 4096
	pongWait    = 60 * time.Second
	sendBufSize = 16
)

// Connection is one subscriber socket. Clients only listen; anything they send is discarded.
type Connection struct {
	sessionID    string
	ws           *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	onClose      func(*Connection)
}

func newConnection(sessionID string, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, logger *zap.Logger, onClose func(*Connection)) *Connection {
	return &Connection{
		sessionID:    sessionID,
		ws:           ws,
		send:         make(chan []byte, sendBufSize),
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		onClose:      onClose,
	}
}

// SessionID returns the session the connection follows.
func (c *Connection) SessionID() string {
	return c.sessionID
}

// Start launches read/write pumps and blocks until the read side closes.
func (c *Connection) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go c.writePump(ctx)
	c.readPump()
	cancel()
}

func (c *Connection) readPump() {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("feed connection read closed", zap.String("session_id", c.sessionID), zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = c.ws.Close()
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.ws.Close()
				return
			}
		}
	}
}

// Send enqueues a message, dropping it when the subscriber is too slow.
func (c *Connection) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping feed message, buffer full", zap.String("session_id", c.sessionID))
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c)
	}
}
