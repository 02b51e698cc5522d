// Package adapter holds the protocol adapters a host can bind a service to.
// Adapters turn raw bytes into model records for a device session and
// render queued commands back onto the wire.
package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"trackgate/internal/core/model"
	"trackgate/internal/session"
)

var ErrUnknown = errors.New("unknown adapter")

// Broadcaster is implemented by adapters whose wire format can carry
// records accepted from other services.
type Broadcaster interface {
	Broadcast(rec *model.Record) [][]byte
}

// Identifier is implemented by adapters that can name the device behind a
// request/response body.
type Identifier interface {
	Identify(body []byte) string
}

var registry = map[string]func() session.Adapter{
	"ais":  func() session.Adapter { return AIS{} },
	"nmea": func() session.Adapter { return NMEA{} },
	"h02":  func() session.Adapter { return NewH02() },
	"gt06": func() session.Adapter { return NewGT06() },
}

func New(name string) (session.Adapter, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return mk(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// maxPending bounds an unterminated frame. Streams that never send the
// terminator are cut rather than buffered forever.
const maxPending = 64 << 10

// splitFrames returns the complete frames in data, without terminator and
// surrounding whitespace, and a copy of the unterminated rest.
func splitFrames(data []byte, term byte) ([]string, []byte) {
	var frames []string
	for {
		i := bytes.IndexByte(data, term)
		if i < 0 {
			break
		}
		if f := bytes.TrimSpace(data[:i]); len(f) > 0 {
			frames = append(frames, string(f))
		}
		data = data[i+1:]
	}
	if len(data) > maxPending {
		return frames, nil
	}
	return frames, append([]byte(nil), data...)
}
