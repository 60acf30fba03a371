package live

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"geminilab/internal/metrics"
	"geminilab/pkg/logger"
)

const writeWait = 10 * time.Second

// clientConn serializes writes to one browser socket. Sends after close are
// dropped silently.
type clientConn struct {
	ws  *websocket.Conn
	log *logger.Logger

	mu     sync.Mutex
	closed bool
}

func newClientConn(ws *websocket.Conn, log *logger.Logger) *clientConn {
	return &clientConn{ws: ws, log: log}
}

// Send writes msg as JSON
func (c *clientConn) Send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(msg); err != nil {
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Debugw("Error sending to client", "type", msg.Type(), "error", err)
		}
		return
	}
	metrics.RecordWSMessage("outbound", msg.Type())
}

// Read returns the next text frame
func (c *clientConn) Read() ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and closes the socket
func (c *clientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
