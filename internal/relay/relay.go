// Package relay forwards gateway events to external systems. Every relay is
// an event observer that buffers and a Run loop that drains the buffer, so a
// slow broker never stalls the bus.
package relay

import (
	"context"
	"log"

	"trackgate/internal/core/model"
	"trackgate/internal/event"
)

const bufferSize = 1024

type Relay interface {
	event.Observer
	Name() string
	Run(ctx context.Context) error
}

// sink is the buffered half shared by the relays.
type sink struct {
	name   string
	logger *log.Logger
	accept func(e event.Event) bool
	in     chan event.Event
}

func newSink(name string, logger *log.Logger, accept func(e event.Event) bool) sink {
	if logger == nil {
		logger = log.Default()
	}
	return sink{name: name, logger: logger, accept: accept, in: make(chan event.Event, bufferSize)}
}

func (s *sink) Name() string { return s.name }

func (s *sink) Notify(e event.Event) {
	if s.accept != nil && !s.accept(e) {
		return
	}
	select {
	case s.in <- e:
	default:
		s.logger.Printf("%s relay full, %s event of %s dropped", s.name, e.Kind, e.DevID)
	}
}

// drain hands buffered events to write until ctx is done. Write errors are
// logged and the event is dropped.
func (s *sink) drain(ctx context.Context, write func(ctx context.Context, e event.Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-s.in:
			if err := write(ctx, e); err != nil {
				s.logger.Printf("%s relay: %v", s.name, err)
			}
		}
	}
}

func isTrack(e event.Event) bool {
	return e.Kind == event.KindAccept && e.Record != nil &&
		e.Record.Cmd == model.CmdTrack && e.Record.Position != nil
}

func isAccept(e event.Event) bool {
	return e.Kind == event.KindAccept && e.Record != nil
}
