// Package gateway owns the active-session registry, the dispatch queue, the
// event bus and the inactivity reaper.
package gateway

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trackgate/internal/event"
	"trackgate/internal/queue"
	"trackgate/internal/session"
)

type Config struct {
	Inactivity   time.Duration
	RetryDelay   time.Duration
	CommandDelay time.Duration
	JobTimeout   time.Duration // applied to jobs the gateway queues itself
}

type Gateway struct {
	cfg     Config
	backend session.Backend
	bus     *event.Bus
	queue   *queue.Queue
	logger  *log.Logger

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func New(cfg Config, backend session.Backend, bus *event.Bus, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	if bus == nil {
		bus = event.NewBus()
	}
	g := &Gateway{
		cfg:      cfg,
		backend:  backend,
		bus:      bus,
		logger:   logger,
		sessions: make(map[string]*session.Session),
	}
	g.queue = queue.New(queue.Config{
		RetryDelay:   cfg.RetryDelay,
		CommandDelay: cfg.CommandDelay,
	}, g, g.queueEvent, logger)
	return g
}

// Run drives the queue worker and the reaper until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return g.queue.Run(ctx)
	})
	if g.cfg.Inactivity > 0 {
		eg.Go(func() error {
			return g.reaper(ctx)
		})
	}
	return eg.Wait()
}

func (g *Gateway) Bus() *event.Bus { return g.bus }

func (g *Gateway) Backend() session.Backend { return g.backend }

func (g *Gateway) Logger() *log.Logger { return g.logger }

func (g *Gateway) Inactivity() time.Duration { return g.cfg.Inactivity }

// NewSession builds a session bound to this gateway.
func (g *Gateway) NewSession(adapter session.Adapter, filter session.Filter, w io.Writer, remote string) *session.Session {
	return session.New(session.Options{
		Adapter: adapter,
		Owner:   g,
		Backend: g.backend,
		Filter:  filter,
		Writer:  w,
		Remote:  remote,
		Logger:  g.logger,
	})
}

// Push queues a command job and returns its id. Jobs with
// queue.DefaultTimeout get the gateway default; a zero timeout is kept.
func (g *Gateway) Push(job queue.Job) string {
	if job.Timeout == queue.DefaultTimeout {
		job.Timeout = g.cfg.JobTimeout
	}
	return g.queue.Push(job)
}

// Register implements session.Owner.
func (g *Gateway) Register(s *session.Session) *session.Session {
	id := s.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.sessions[id]
	g.sessions[id] = s
	if prev == s {
		return nil
	}
	return prev
}

func (g *Gateway) Unregister(s *session.Session) {
	id := s.ID()
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[id] == s {
		delete(g.sessions, id)
	}
}

func (g *Gateway) Lookup(id string) *session.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sessions[id]
}

func (g *Gateway) Enqueue(devID, command string, args []string) {
	g.queue.Push(queue.Job{DevID: devID, Command: command, Args: args, Timeout: g.cfg.JobTimeout})
}

func (g *Gateway) Publish(e event.Event) {
	g.bus.Publish(e)
}

// Target implements queue.Directory.
func (g *Gateway) Target(devID string) (queue.Target, bool) {
	s := g.Lookup(devID)
	if s == nil || s.State() != session.Active {
		return nil, false
	}
	return s, true
}

func (g *Gateway) ActiveIDs() []string {
	g.mu.RLock()
	all := make([]*session.Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		all = append(all, s)
	}
	g.mu.RUnlock()

	ids := make([]string, 0, len(all))
	for _, s := range all {
		if s.State() == session.Active {
			ids = append(ids, s.ID())
		}
	}
	sort.Strings(ids)
	return ids
}

// Sessions returns a snapshot of every registered session.
func (g *Gateway) Sessions() []session.Info {
	g.mu.RLock()
	all := make([]*session.Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		all = append(all, s)
	}
	g.mu.RUnlock()

	infos := make([]session.Info, 0, len(all))
	for _, s := range all {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Reap logs out every session silent for longer than the inactivity
// window and returns how many were removed.
func (g *Gateway) Reap(ctx context.Context, now time.Time) int {
	g.mu.RLock()
	var expired []*session.Session
	for _, s := range g.sessions {
		if s.Expired(now, g.cfg.Inactivity) {
			expired = append(expired, s)
		}
	}
	g.mu.RUnlock()

	for _, s := range expired {
		g.logger.Printf("gateway: session %s inactive, removing", s.ID())
		s.LogoutDev(ctx, "inactivity")
		s.Close()
	}
	return len(expired)
}

func (g *Gateway) reaper(ctx context.Context) error {
	period := g.cfg.Inactivity / 4
	if period <= 0 {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			g.Reap(ctx, now)
		}
	}
}

func (g *Gateway) queueEvent(status queue.Status, job queue.Job) {
	g.bus.Publish(event.Event{
		Kind:     event.KindQueue,
		Status:   string(status),
		DevID:    job.DevID,
		JobID:    job.ID,
		Command:  job.Command,
		Args:     job.Args,
		Retry:    job.Retry,
		Parent:   job.Parent,
		SubIndex: job.SubIndex,
	})
}
