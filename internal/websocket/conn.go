package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// ErrSlowConsumer is returned by Send when the client stopped reading.
var ErrSlowConsumer = errors.New("websocket: send buffer full")

// Conn serializes writes to a gorilla connection, which allows one writer at
// a time. Session events arrive from the countdown goroutine as well as from
// the read loop; both go through Send.
type Conn struct {
	ws   *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
}

// NewConn wraps ws and starts its writer. Close must be called.
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writeLoop()
	return c
}

// Send queues v without blocking. A full buffer closes the connection.
func (c *Conn) Send(v any) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}

	select {
	case c.send <- v:
		return nil
	case <-c.done:
		return websocket.ErrCloseSent
	default:
		c.Close()
		return ErrSlowConsumer
	}
}

// SendError queues an ErrorResponse.
func (c *Conn) SendError(msg string, fields map[string]string) error {
	return c.Send(ErrorResponse{Event: EventError, Error: msg, Fields: fields})
}

// ReadJSON reads the next client message. Any client message extends the deadline.
func (c *Conn) ReadJSON(v any) error {
	if err := c.ws.ReadJSON(v); err != nil {
		return err
	}
	return c.ws.SetReadDeadline(time.Now().Add(pongWait))
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close stops the writer, which sends a close frame and closes the socket.
// Safe to call more than once.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
