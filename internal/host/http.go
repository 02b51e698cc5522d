package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"trackgate/internal/config"
	"trackgate/internal/core/model"
	"trackgate/internal/gateway"
	"trackgate/internal/protocol/adapter"
	"trackgate/internal/session"
)

const maxBody = 1 << 20

// HTTPServer serves devices that post their data one request at a time.
// The device is named by ?id= or, failing that, by the adapter.
type HTTPServer struct {
	svc     config.Service
	gw      *gateway.Gateway
	adapter session.Adapter
	logger  *log.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

func NewHTTPServer(svc config.Service, gw *gateway.Gateway, a session.Adapter) *HTTPServer {
	return &HTTPServer{svc: svc, gw: gw, adapter: a, logger: gw.Logger(), ready: make(chan struct{})}
}

func (h *HTTPServer) Name() string { return h.svc.Name }

// Addr blocks until the server listens and returns its address.
func (h *HTTPServer) Addr() net.Addr {
	<-h.ready
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *HTTPServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.svc.Listen)
	h.mu.Lock()
	h.listener = listener
	h.mu.Unlock()
	close(h.ready)
	if err != nil {
		return fmt.Errorf("failed to start HTTP host %s: %w", h.svc.Name, err)
	}

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	h.logger.Printf("HTTP host %s (%s) listening on %s", h.svc.Name, h.adapter.Name(), listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		if ider, ok := h.adapter.(adapter.Identifier); ok {
			id = ider.Identify(body)
		}
	}
	if id == "" {
		http.Error(w, "Device id required", http.StatusBadRequest)
		return
	}

	s, err := h.session(r.Context(), id, r.RemoteAddr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if len(body) > 0 && body[len(body)-1] != '\n' {
		body = append(body, '\n')
	}
	h.adapter.ParseBuffer(r.Context(), s, body)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Info())
}

// session returns the live session of id, logging a new one in when the
// device is unknown or served by another adapter.
func (h *HTTPServer) session(ctx context.Context, id, remote string) (*session.Session, error) {
	if s := h.gw.Lookup(id); s != nil && s.State() == session.Active && s.Adapter().Name() == h.adapter.Name() {
		return s, nil
	}

	s := h.gw.NewSession(h.adapter, h.svc.Filter, nil, remote)
	if err := h.adapter.ClientConnect(s); err != nil {
		return nil, err
	}
	if v := s.ProcessData(ctx, &model.Record{Cmd: model.CmdLogin, DevID: id}); v != session.Accepted {
		return nil, fmt.Errorf("login of %s %s", id, v)
	}
	return s, nil
}
