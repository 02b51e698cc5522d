package host

import (
	"context"
	"io"
	"log"
	"net"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"trackgate/internal/config"
	"trackgate/internal/gateway"
	"trackgate/internal/session"
)

// Client connects out to a feed, a TCP server or a local serial port, and
// runs one session over it. When the link drops it is re-established after
// the service's fixed reconnect delay.
type Client struct {
	svc     config.Service
	gw      *gateway.Gateway
	adapter session.Adapter
	logger  *log.Logger
	dial    func(ctx context.Context) (io.ReadWriteCloser, error)
}

func NewClient(svc config.Service, gw *gateway.Gateway, a session.Adapter) *Client {
	c := &Client{svc: svc, gw: gw, adapter: a, logger: gw.Logger()}
	c.dial = c.open
	return c
}

func (c *Client) Name() string { return c.svc.Name }

func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err == nil {
			c.logger.Printf("Client %s (%s) connected to %s", c.svc.Name, c.adapter.Name(), c.svc.Remote)
			err = serve(ctx, c.gw, c.adapter, c.svc.Filter, conn, c.svc.Remote)
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			c.logger.Printf("Client %s: %v", c.svc.Name, err)
		}
		c.logger.Printf("Client %s: reconnecting in %s", c.svc.Name, c.svc.ReconnectDelay)

		t := time.NewTimer(c.svc.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Client) open(ctx context.Context) (io.ReadWriteCloser, error) {
	if port, ok := strings.CutPrefix(c.svc.Remote, "serial://"); ok {
		return serial.Open(serial.OpenOptions{
			PortName:        port,
			BaudRate:        c.svc.Baud,
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		})
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", strings.TrimPrefix(c.svc.Remote, "tcp://"))
}
