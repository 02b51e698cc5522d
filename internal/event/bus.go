// Package event carries gateway notifications (queue transitions, accepted
// records, notices, device lifecycle) to observers such as the console and
// the MQTT, Kafka and InfluxDB relays.
package event

import (
	"sync"
	"time"
	"trackgate/internal/core/model"
	"trackgate/internal/core/util"
)

type Kind string

const (
	KindQueue   Kind = "queue"
	KindAccept  Kind = "accept"
	KindNotice  Kind = "notice"
	KindDevAuth Kind = "dev-auth"
	KindDevPos  Kind = "dev-pos"
	KindDevQuit Kind = "dev-quit"
)

// Event is one notification. Queue events fill the Job* fields, accept
// events carry the Record.
type Event struct {
	ID     string    `json:"id"`
	Kind   Kind      `json:"kind"`
	Time   time.Time `json:"time"`
	DevID  string    `json:"devId,omitempty"`
	Status string    `json:"status,omitempty"`
	Info   string    `json:"info,omitempty"`

	JobID    string   `json:"jobId,omitempty"`
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Retry    int      `json:"retry,omitempty"`
	Parent   string   `json:"parent,omitempty"`
	SubIndex int      `json:"subIndex,omitempty"`

	Record *model.Record `json:"record,omitempty"`
}

type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Bus fans events out to observers synchronously, in subscription order.
// Observers must not block; slow sinks buffer on their side.
type Bus struct {
	mu        sync.RWMutex
	next      int
	observers map[int]Observer
	order     []int
}

func NewBus() *Bus {
	return &Bus{observers: make(map[int]Observer)}
}

// Subscribe registers o and returns a function removing it again.
func (b *Bus) Subscribe(o Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.observers[id] = o
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish stamps e with an id and time when missing and delivers it.
func (b *Bus) Publish(e Event) {
	if e.ID == "" {
		e.ID = util.GenerateID()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	observers := make([]Observer, 0, len(b.order))
	for _, id := range b.order {
		observers = append(observers, b.observers[id])
	}
	b.mu.RUnlock()

	for _, o := range observers {
		o.Notify(e)
	}
}
