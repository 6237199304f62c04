package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	maxInboundSize = 512
)

// Conn adapts a websocket connection to Channel. Outbound messages queue in a bounded buffer and
// a dedicated goroutine writes them, so Send never waits on the network.
type Conn struct {
	id     string
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

var _ Channel = (*Conn)(nil)

func NewConn(ws *websocket.Conn, buffer int, logger *zap.Logger) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		ws:     ws,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("channel", id)),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrSlowConsumer
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Serve pumps the connection until either side closes it, then runs onClose before returning.
func (c *Conn) Serve(onClose func()) {
	go c.writePump()
	c.readPump()
	c.Close()
	if onClose != nil {
		onClose()
	}
}

// readPump drains client frames so control messages are processed; clients have nothing to say.
func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxInboundSize)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
