// internal/harness/ws.go

package harness

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout  = 10 * time.Second
	pongTimeout   = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendQueueSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The harness binds to loopback or a trusted test network; browsers
	// are not a supported client.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient is one connected event-stream subscriber. All writes to the
// connection happen on the writePump goroutine; senders only enqueue.
type wsClient struct {
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (s *Server) handleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("event stream upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}

	s.wsMu.Lock()
	s.clients[client] = struct{}{}
	s.wsMu.Unlock()
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("event stream connected")

	go client.writePump()
	client.readPump() // blocks until the peer disconnects

	s.wsMu.Lock()
	delete(s.clients, client)
	s.wsMu.Unlock()
	client.close()
	s.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("event stream disconnected")
}

// send enqueues a frame, dropping it when the client cannot keep up. A
// slow harness must never stall event dispatch.
func (c *wsClient) send(data []byte) {
	select {
	case c.out <- data:
	case <-c.done:
	default:
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// process control frames and detect disconnects.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
