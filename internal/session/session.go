// Package session holds the per-device state machine: login, position
// filtering, alarms and command requests.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"trackgate/internal/core/model"
	"trackgate/internal/event"
)

type State int

const (
	Unauthenticated State = iota
	Pending               // login sent to the backend
	Active
	Removed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Pending:
		return "pending"
	case Active:
		return "active"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// RequestAction results.
const (
	ActionSent        = 0
	ActionRefused     = -1
	ActionUnsupported = -2
)

var ErrNoTransport = errors.New("session has no transport")

// Backend persists what sessions accept. Implementations may be slow; the
// session never holds its lock across a backend call.
type Backend interface {
	LoginDev(ctx context.Context, devID, name, protocol string) error
	LogoutDev(ctx context.Context, devID, reason string) error
	UpdatePosDev(ctx context.Context, pos *model.Position) error
	IgnorePosDev(ctx context.Context, pos *model.Position) error
	UpdateAlarmDev(ctx context.Context, devID, alarm string, pos *model.Position) error
	UpdateObdDev(ctx context.Context, devID string, data map[string]interface{}) error
	UpdateStaticDev(ctx context.Context, static *model.Static) error
	LookupDev(ctx context.Context, devID string, limit int) ([]*model.Position, error)
}

// Adapter speaks one device protocol. ParseBuffer consumes complete
// messages from data, feeds them to the session and returns what is left.
type Adapter interface {
	Name() string
	ClientConnect(s *Session) error
	ClientQuit(s *Session)
	ParseBuffer(ctx context.Context, s *Session, data []byte) []byte
	SendCommand(s *Session, command string, args []string) int
}

// Owner is the registry sessions live in.
type Owner interface {
	// Register stores s under its id and returns the session it replaced.
	Register(s *Session) *Session
	// Unregister removes s, and only s, from the registry.
	Unregister(s *Session)
	Lookup(id string) *Session
	Enqueue(devID, command string, args []string)
	Publish(e event.Event)
}

type Options struct {
	Adapter Adapter
	Owner   Owner
	Backend Backend
	Filter  Filter
	Writer  io.Writer // transport handle, nil for request/response hosts
	Remote  string
	Logger  *log.Logger
}

type Session struct {
	opts   Options
	shared bool // transport belongs to the session that spawned this one

	mu         sync.Mutex
	id         string
	name       string
	state      State
	epoch      uint64
	last       *model.Position
	static     model.Static
	lastSeen   time.Time
	errorCount int
	alarmCount int
	data       interface{}

	writeMu sync.Mutex
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Session{opts: opts, lastSeen: time.Now()}
}

// Spawn creates a sibling session sharing this session's adapter, owner,
// backend and transport. AIS receivers use it for every vessel they hear.
func (s *Session) Spawn() *Session {
	child := New(s.opts)
	child.shared = true
	return child
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Adapter() Adapter { return s.opts.Adapter }
func (s *Session) Owner() Owner { return s.opts.Owner }
func (s *Session) Remote() string { return s.opts.Remote }
func (s *Session) Logger() *log.Logger {
	return s.opts.Logger
}

// Data returns the adapter state attached with SetData.
func (s *Session) Data() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *Session) SetData(v interface{}) {
	s.mu.Lock()
	s.data = v
	s.mu.Unlock()
}

// Write sends raw bytes to the device.
func (s *Session) Write(p []byte) error {
	if s.opts.Writer == nil {
		return ErrNoTransport
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.opts.Writer.Write(p)
	return err
}

// Touch records activity without a record, e.g. a keep-alive.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the session was silent for longer than window.
func (s *Session) Expired(now time.Time, window time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen) > window
}

// Info is a snapshot for listings.
type Info struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	State      string          `json:"state"`
	Protocol   string          `json:"protocol"`
	Remote     string          `json:"remote,omitempty"`
	LastSeen   time.Time       `json:"lastSeen"`
	Position   *model.Position `json:"position,omitempty"`
	Static     *model.Static   `json:"static,omitempty"`
	ErrorCount int             `json:"errorCount"`
	AlarmCount int             `json:"alarmCount"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:         s.id,
		Name:       s.name,
		State:      s.state.String(),
		Remote:     s.opts.Remote,
		LastSeen:   s.lastSeen,
		ErrorCount: s.errorCount,
		AlarmCount: s.alarmCount,
	}
	if s.opts.Adapter != nil {
		info.Protocol = s.opts.Adapter.Name()
	}
	if s.last != nil {
		p := *s.last
		info.Position = &p
	}
	if s.static.DeviceID != "" {
		st := s.static
		info.Static = &st
	}
	return info
}

// RequestAction hands a command to the adapter. It returns ActionSent,
// ActionRefused or ActionUnsupported.
func (s *Session) RequestAction(command string, args []string) int {
	if s.State() != Active || s.opts.Adapter == nil {
		return ActionRefused
	}
	return s.opts.Adapter.SendCommand(s, command, args)
}

// LogoutDev removes the session from the registry and tells the backend.
// Calling it again does nothing.
func (s *Session) LogoutDev(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.state == Removed {
		s.mu.Unlock()
		return
	}
	logged := s.state == Active || s.state == Pending
	s.state = Removed
	s.epoch++
	id := s.id
	s.mu.Unlock()

	if s.opts.Owner != nil {
		s.opts.Owner.Unregister(s)
	}
	if id == "" {
		return
	}
	if logged {
		if err := s.opts.Backend.LogoutDev(ctx, id, reason); err != nil {
			s.notice(id, "backend", "logout: "+err.Error())
		}
	}
	s.publish(event.Event{Kind: event.KindDevQuit, DevID: id, Info: reason})
}

// Close marks the session removed without telling the backend. It is used
// when a newer session took over the same id.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = Removed
	s.epoch++
	s.mu.Unlock()
	if s.shared {
		return
	}
	if c, ok := s.opts.Writer.(io.Closer); ok {
		c.Close()
	}
}

func (s *Session) publish(e event.Event) {
	if s.opts.Owner != nil {
		s.opts.Owner.Publish(e)
	}
}

func (s *Session) notice(devID, status, info string) {
	s.opts.Logger.Printf("session %s: %s: %s", devID, status, info)
	s.publish(event.Event{Kind: event.KindNotice, DevID: devID, Status: status, Info: info})
}
