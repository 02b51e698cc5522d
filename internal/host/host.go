// Package host binds a configured service to its transport: a TCP
// listener, an HTTP endpoint, an outbound TCP or serial client, or a
// broadcast listener relaying accepted records.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"trackgate/internal/config"
	"trackgate/internal/gateway"
	"trackgate/internal/protocol/adapter"
	"trackgate/internal/session"
)

type Host interface {
	Name() string
	Run(ctx context.Context) error
}

func New(svc config.Service, gw *gateway.Gateway) (Host, error) {
	a, err := adapter.New(svc.Adapter)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", svc.Name, err)
	}

	switch svc.Mode {
	case config.ModeListen:
		return NewTCPServer(svc, gw, a), nil
	case config.ModeHTTP:
		return NewHTTPServer(svc, gw, a), nil
	case config.ModeClient:
		return NewClient(svc, gw, a), nil
	case config.ModeBroadcast:
		b, ok := a.(adapter.Broadcaster)
		if !ok {
			return nil, fmt.Errorf("service %s: adapter %s cannot broadcast", svc.Name, svc.Adapter)
		}
		return NewBroadcaster(svc, gw, b), nil
	}
	return nil, fmt.Errorf("service %s: unknown mode %q", svc.Name, svc.Mode)
}

// serve runs one device session over conn until the peer disconnects, the
// session is closed or ctx is cancelled.
func serve(ctx context.Context, gw *gateway.Gateway, a session.Adapter, filter session.Filter, conn io.ReadWriteCloser, remote string) error {
	s := gw.NewSession(a, filter, conn, remote)
	if err := a.ClientConnect(s); err != nil {
		conn.Close()
		return fmt.Errorf("%s connect: %w", a.Name(), err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		a.ClientQuit(s)
		s.LogoutDev(context.Background(), "disconnected")
		conn.Close()
	}()

	idle := gw.Inactivity()
	deadline, canDeadline := conn.(interface{ SetReadDeadline(time.Time) error })

	buffer := make([]byte, 4096)
	var pending []byte
	for {
		if canDeadline && idle > 0 {
			deadline.SetReadDeadline(time.Now().Add(idle))
		}
		n, err := conn.Read(buffer)
		if n > 0 {
			pending = a.ParseBuffer(ctx, s, append(pending, buffer[:n]...))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil || s.State() == session.Removed {
				return nil
			}
			return err
		}
	}
}
