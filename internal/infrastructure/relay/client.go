package relay

import (
	"sync"
	"time"

	"telecall/internal/core/domain"

	"github.com/gorilla/websocket"
)

// client is one relay-side websocket connection. Writes are serialized
// through writeMu because gorilla allows a single concurrent writer.
type client struct {
	connID         domain.ConnectionID
	consultationID domain.ConsultationID
	participantID  string
	role           domain.Role

	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration

	joined bool
}

func (c *client) send(msg domain.SignalMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}
