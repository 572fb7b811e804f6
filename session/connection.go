package session

import (
	"encoding/json"
	"sync"
	"time"

	"tonkserver/common/log"

	"github.com/gorilla/websocket"
)

var (
	pongWait     = 30 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

const maxMessageBytes = 1 << 16

// Connection is one authenticated websocket session. It owns the read
// pump / write pump goroutine pair and never mutates table state
// itself: every inbound frame is forwarded to the owning table's
// actor, and Close always routes through the table so disconnect
// handling stays serialized with everything else touching that table.
type Connection struct {
	Id       string
	UserId   string
	conn     *websocket.Conn
	writeCh  chan Envelope
	closeCh  chan struct{}
	closeOne sync.Once

	onMessage func(Envelope)
	onClose   func()
}

func NewConnection(id, userId string, ws *websocket.Conn, onMessage func(Envelope), onClose func()) *Connection {
	return &Connection{
		Id:        id,
		UserId:    userId,
		conn:      ws,
		writeCh:   make(chan Envelope, 64),
		closeCh:   make(chan struct{}),
		onMessage: onMessage,
		onClose:   onClose,
	}
}

func (c *Connection) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *Connection) Send(e Envelope) {
	select {
	case c.writeCh <- e:
	default:
		log.Warn("connection %s write buffer full, dropping %s", c.Id, e.Event)
	}
}

func (c *Connection) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn("connection %s closed unexpectedly: %v", c.Id, err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Send(envelope(EventError, ErrorPayload{Code: "malformed_message", Message: err.Error()}))
			continue
		}
		c.onMessage(env)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.writeCh:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				log.Error("connection %s marshal %s: %v", c.Id, env.Event, err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error("connection %s write error: %v", c.Id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Close is idempotent: the read pump, the write pump, and a disconnect
// routed back from the table actor can all call it concurrently.
func (c *Connection) Close() {
	c.closeOne.Do(func() {
		close(c.closeCh)
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
}
