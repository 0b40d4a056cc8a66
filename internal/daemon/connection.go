package daemon

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// sendBuffer is the per-connection outbound queue depth. Screen captures
// are large but few; broadcasts are small and bursty.
const sendBuffer = 64

// Connection is one client connection. The read pump feeds frames to the
// daemon's dispatch loop; the write pump drains send in FIFO order, so
// frames queued for a connection go out in the order they were queued.
type Connection struct {
	id     int64
	conn   *websocket.Conn
	daemon *Daemon
	logger *zap.Logger

	send chan []byte

	// closed is read and written only by the dispatch loop.
	closed bool
}

func newConnection(id int64, conn *websocket.Conn, d *Daemon) *Connection {
	return &Connection{
		id:     id,
		conn:   conn,
		daemon: d,
		logger: d.logger.Named("conn").With(zap.Int64("client", id)),
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Connection) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// enqueue queues a frame for delivery. It reports false when the
// connection is closed or its buffer is full; the caller decides whether
// to drop the client. enqueue is called only from the dispatch loop.
func (c *Connection) enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue, which ends the write pump and closes
// the socket. Idempotent; called only from the dispatch loop.
func (c *Connection) shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads frames off the socket and posts them to the dispatch
// loop. On any read error the connection is unregistered.
func (c *Connection) readPump() {
	defer c.daemon.wg.Done()
	defer func() {
		select {
		case c.daemon.unregister <- c:
		case <-c.daemon.ctx.Done():
		}
	}()

	c.conn.SetReadLimit(c.daemon.cfg.MaxMessageBytes)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read error", zap.Error(err))
			}
			return
		}

		select {
		case c.daemon.inbound <- inboundFrame{conn: c, data: data}:
		case <-c.daemon.ctx.Done():
			return
		}
	}
}

// writePump drains the send queue onto the socket. It exits when the
// queue is closed by shutdown or when a write fails, closing the socket
// either way (which in turn ends the read pump).
func (c *Connection) writePump() {
	defer c.daemon.wg.Done()
	defer c.conn.Close()

	for frame := range c.send {
		if t := c.daemon.cfg.WriteTimeout; t > 0 {
			c.conn.SetWriteDeadline(time.Now().Add(t))
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.logger.Warn("write error", zap.Error(err))
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
