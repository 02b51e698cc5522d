package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trackgate/internal/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Console streams every event as JSON to the websocket clients of
// /ws/console. Clients that fall behind lose events.
type Console struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

func NewConsole(logger *log.Logger) *Console {
	if logger == nil {
		logger = log.Default()
	}
	return &Console{logger: logger, clients: make(map[*websocket.Conn]chan []byte)}
}

func (c *Console) Name() string { return "console" }

// Clients returns the number of connected consoles.
func (c *Console) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *Console) Notify(e event.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, out := range c.clients {
		select {
		case out <- data:
		default:
		}
	}
}

// Run closes every console when ctx is done.
func (c *Console) Run(ctx context.Context) error {
	<-ctx.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for conn, out := range c.clients {
		delete(c.clients, conn)
		close(out)
	}
	return nil
}

func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Printf("console: websocket upgrade error: %v", err)
		return
	}

	out := make(chan []byte, bufferSize)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.clients[conn] = out
	c.mu.Unlock()

	go c.readLoop(conn)
	c.writeLoop(conn, out)
}

// readLoop discards client input and notices the close.
func (c *Console) readLoop(conn *websocket.Conn) {
	defer c.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Printf("console: websocket error: %v", err)
			}
			return
		}
	}
}

func (c *Console) writeLoop(conn *websocket.Conn, out chan []byte) {
	defer conn.Close()
	for data := range out {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.drop(conn)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

func (c *Console) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if out, ok := c.clients[conn]; ok {
		delete(c.clients, conn)
		close(out)
	}
}
