package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"trackgate/internal/config"
	"trackgate/internal/gateway"
	"trackgate/internal/session"
)

// TCPServer accepts device connections, one session per connection.
type TCPServer struct {
	svc     config.Service
	gw      *gateway.Gateway
	adapter session.Adapter
	logger  *log.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewTCPServer(svc config.Service, gw *gateway.Gateway, a session.Adapter) *TCPServer {
	return &TCPServer{svc: svc, gw: gw, adapter: a, logger: gw.Logger(), ready: make(chan struct{})}
}

func (s *TCPServer) Name() string { return s.svc.Name }

// Addr blocks until the server listens and returns its address.
func (s *TCPServer) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *TCPServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.svc.Listen)
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)
	if err != nil {
		return fmt.Errorf("failed to start TCP server %s: %w", s.svc.Name, err)
	}

	s.logger.Printf("TCP server %s (%s) listening on %s", s.svc.Name, s.adapter.Name(), listener.Addr())

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
				return nil
			}
			s.logger.Printf("Error accepting connection on %s: %v", s.svc.Name, err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *TCPServer) handleConnection(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Printf("New %s connection from %s", s.adapter.Name(), remote)

	if err := serve(ctx, s.gw, s.adapter, s.svc.Filter, conn, remote); err != nil {
		s.logger.Printf("Error reading from %s: %v", remote, err)
	}
}
