package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"trackgate/internal/config"
	"trackgate/internal/event"
	"trackgate/internal/gateway"
	"trackgate/internal/protocol/adapter"
)

// clientQueue is how many frames a slow broadcast client may lag behind
// before frames are dropped for it.
const clientQueue = 256

// Broadcaster relays every accepted record, re-encoded by its adapter, to
// all connected clients.
type Broadcaster struct {
	svc     config.Service
	gw      *gateway.Gateway
	encoder adapter.Broadcaster
	logger  *log.Logger
	sources map[string]bool

	mu       sync.Mutex
	clients  map[net.Conn]chan []byte
	listener net.Listener
	ready    chan struct{}
}

func NewBroadcaster(svc config.Service, gw *gateway.Gateway, b adapter.Broadcaster) *Broadcaster {
	sources := make(map[string]bool)
	for _, s := range svc.Source {
		sources[s] = true
	}
	return &Broadcaster{
		svc:     svc,
		gw:      gw,
		encoder: b,
		logger:  gw.Logger(),
		sources: sources,
		clients: make(map[net.Conn]chan []byte),
		ready:   make(chan struct{}),
	}
}

func (b *Broadcaster) Name() string { return b.svc.Name }

// Addr blocks until the broadcaster listens and returns its address.
func (b *Broadcaster) Addr() net.Addr {
	<-b.ready
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", b.svc.Listen)
	b.mu.Lock()
	b.listener = listener
	b.mu.Unlock()
	close(b.ready)
	if err != nil {
		return fmt.Errorf("failed to start broadcast server %s: %w", b.svc.Name, err)
	}

	unsubscribe := b.gw.Bus().Subscribe(event.ObserverFunc(b.Notify))
	defer unsubscribe()

	b.logger.Printf("Broadcast server %s listening on %s", b.svc.Name, listener.Addr())
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				b.closeAll()
				return nil
			}
			b.logger.Printf("Error accepting broadcast client on %s: %v", b.svc.Name, err)
			continue
		}

		out := make(chan []byte, clientQueue)
		b.mu.Lock()
		b.clients[conn] = out
		b.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			b.writeLoop(conn, out)
		}()
	}
}

// Notify is the bus observer: accepted records are encoded once and queued
// to every client.
func (b *Broadcaster) Notify(e event.Event) {
	if e.Kind != event.KindAccept || e.Record == nil {
		return
	}
	if len(b.sources) > 0 && !b.sources[e.Info] {
		return
	}
	frames := b.encoder.Broadcast(e.Record)
	if len(frames) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, out := range b.clients {
		for _, f := range frames {
			select {
			case out <- f:
			default:
				b.logger.Printf("Broadcast client %s is lagging, frame dropped", conn.RemoteAddr())
			}
		}
	}
}

func (b *Broadcaster) writeLoop(conn net.Conn, out chan []byte) {
	defer b.drop(conn)
	for f := range out {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if _, err := conn.Write(f); err != nil {
			return
		}
	}
}

func (b *Broadcaster) drop(conn net.Conn) {
	b.mu.Lock()
	if out, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		close(out)
	}
	b.mu.Unlock()
	conn.Close()
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, out := range b.clients {
		delete(b.clients, conn)
		close(out)
	}
}
