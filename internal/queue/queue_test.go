package queue

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeTarget struct {
	mu     sync.Mutex
	status int
	got    []string
}

func (f *fakeTarget) RequestAction(command string, args []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, command)
	return f.status
}

type fakeDirectory struct {
	mu      sync.Mutex
	targets map[string]*fakeTarget
}

func (d *fakeDirectory) Target(devID string) (Target, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.targets[devID]
	return t, ok
}

func (d *fakeDirectory) ActiveIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.targets))
	for id := range d.targets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *fakeDirectory) set(id string, t *fakeTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets[id] = t
}

type transition struct {
	status Status
	job    Job
	at     time.Time
}

func startQueue(t *testing.T, cfg Config, dir Directory) (*Queue, <-chan transition) {
	t.Helper()
	events := make(chan transition, 100)
	q := New(cfg, dir, func(s Status, j Job) {
		events <- transition{s, j, time.Now()}
	}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q, events
}

// next returns the next transition that is not PUSHED.
func next(t *testing.T, events <-chan transition) transition {
	t.Helper()
	for {
		select {
		case e := <-events:
			if e.status != StatusPushed {
				return e
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a queue transition")
		}
	}
}

func TestBroadcastFansOut(t *testing.T) {
	dir := &fakeDirectory{targets: map[string]*fakeTarget{
		"a": {}, "b": {}, "c": {},
	}}
	q, events := startQueue(t, Config{}, dir)

	parent := q.Push(Job{DevID: "0", Command: "RESET", Timeout: time.Minute})

	ack := next(t, events)
	if ack.status != StatusBroadcast || ack.job.ID != parent {
		t.Fatalf("first transition = %s %s, want BROADCAST %s", ack.status, ack.job.ID, parent)
	}

	seen := map[string]int{}
	for i := 0; i < 3; i++ {
		e := next(t, events)
		if e.status != StatusSent {
			t.Fatalf("sub job transition = %s", e.status)
		}
		if e.job.Parent != parent {
			t.Errorf("sub job parent = %q, want %q", e.job.Parent, parent)
		}
		if e.job.ID == parent {
			t.Errorf("sub job reuses the parent id")
		}
		seen[e.job.DevID] = e.job.SubIndex
	}
	if len(seen) != 3 || seen["a"] == seen["b"] || seen["b"] == seen["c"] || seen["a"] == seen["c"] {
		t.Errorf("sub jobs = %v, want three distinct devices and indexes", seen)
	}

	select {
	case e := <-events:
		t.Errorf("unexpected extra transition %s for %s", e.status, e.job.DevID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastSubJobsRetryIndependently(t *testing.T) {
	refusing := &fakeTarget{status: -1}
	dir := &fakeDirectory{targets: map[string]*fakeTarget{"a": {}, "b": refusing}}
	q, events := startQueue(t, Config{RetryDelay: 10 * time.Millisecond}, dir)

	q.Push(Job{Command: "RESET", Timeout: time.Minute})
	next(t, events) // BROADCAST

	got := map[string]Status{}
	for i := 0; i < 2; i++ {
		e := next(t, events)
		got[e.job.DevID] = e.status
	}
	if got["a"] != StatusSent || got["b"] != StatusRefused {
		t.Errorf("sub job results = %v", got)
	}
}

func TestOfflineDeviceWithoutTimeoutIsDropped(t *testing.T) {
	q, events := startQueue(t, Config{RetryDelay: time.Millisecond}, &fakeDirectory{targets: map[string]*fakeTarget{}})
	q.Push(Job{DevID: "dev1", Command: "RESET"})
	if e := next(t, events); e.status != StatusNotLog {
		t.Fatalf("transition = %s, want NOTLOG", e.status)
	}
}

func TestOfflineDeviceTimesOut(t *testing.T) {
	q, events := startQueue(t, Config{RetryDelay: 10 * time.Millisecond}, &fakeDirectory{targets: map[string]*fakeTarget{}})
	q.Push(Job{DevID: "dev1", Command: "RESET", Timeout: 45 * time.Millisecond})

	retries := 0
	for {
		e := next(t, events)
		if e.status == StatusRetry {
			retries++
			if e.job.Retry != retries {
				t.Errorf("retry count = %d, want %d", e.job.Retry, retries)
			}
			continue
		}
		if e.status != StatusTimeout {
			t.Fatalf("transition = %s, want RETRY or TIMEOUT", e.status)
		}
		break
	}
	if retries < 2 {
		t.Errorf("only %d retries before timing out", retries)
	}
}

func TestRetryDeliversOnceDeviceLogsIn(t *testing.T) {
	dir := &fakeDirectory{targets: map[string]*fakeTarget{}}
	q, events := startQueue(t, Config{RetryDelay: 20 * time.Millisecond}, dir)
	q.Push(Job{DevID: "dev1", Command: "RESET", Timeout: time.Minute})

	if e := next(t, events); e.status != StatusRetry {
		t.Fatalf("transition = %s, want RETRY", e.status)
	}
	target := &fakeTarget{}
	dir.set("dev1", target)

	for {
		e := next(t, events)
		if e.status == StatusRetry {
			continue
		}
		if e.status != StatusSent {
			t.Fatalf("transition = %s, want SENT", e.status)
		}
		break
	}
	if len(target.got) != 1 || target.got[0] != "RESET" {
		t.Errorf("device received %v", target.got)
	}
}

func TestRefusedAndUnknown(t *testing.T) {
	dir := &fakeDirectory{targets: map[string]*fakeTarget{
		"refuses": {status: -1},
		"unknown": {status: -2},
	}}
	q, events := startQueue(t, Config{CommandDelay: time.Hour}, dir)

	q.Push(Job{DevID: "refuses", Command: "X"})
	q.Push(Job{DevID: "unknown", Command: "X"})

	// neither result may pause the worker
	if e := next(t, events); e.status != StatusRefused {
		t.Errorf("transition = %s, want REFUSED", e.status)
	}
	if e := next(t, events); e.status != StatusUnknown {
		t.Errorf("transition = %s, want UNKNOWN", e.status)
	}
}

func TestPauseAfterSend(t *testing.T) {
	target := &fakeTarget{}
	dir := &fakeDirectory{targets: map[string]*fakeTarget{"dev1": target}}
	delay := 60 * time.Millisecond
	q, events := startQueue(t, Config{CommandDelay: delay}, dir)

	q.Push(Job{DevID: "dev1", Command: "A"})
	q.Push(Job{DevID: "dev1", Command: "B"})

	first := next(t, events)
	second := next(t, events)
	if first.job.Command != "A" || second.job.Command != "B" {
		t.Fatalf("order = %s, %s", first.job.Command, second.job.Command)
	}
	if gap := second.at.Sub(first.at); gap < delay {
		t.Errorf("second command sent %v after the first, want at least %v", gap, delay)
	}
}

func TestPushPublishes(t *testing.T) {
	events := make(chan transition, 1)
	q := New(Config{}, &fakeDirectory{}, func(s Status, j Job) {
		events <- transition{status: s, job: j}
	}, nil)

	id := q.Push(Job{DevID: "dev1", Command: "RESET", Timeout: time.Minute})
	e := <-events
	if e.status != StatusPushed || e.job.ID != id {
		t.Errorf("transition = %s %s", e.status, e.job.ID)
	}
	if e.job.Deadline.IsZero() {
		t.Errorf("deadline not set")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestPushedPrecedesRetryOfOfflineDevice(t *testing.T) {
	dir := &fakeDirectory{targets: map[string]*fakeTarget{}}
	q, events := startQueue(t, Config{RetryDelay: time.Millisecond}, dir)

	id := q.Push(Job{DevID: "offline", Command: "RESET", Timeout: 30 * time.Millisecond})

	var statuses []Status
	lastRetry := 0
	for {
		var e transition
		select {
		case e = <-events:
		case <-time.After(2 * time.Second):
			t.Fatalf("no TIMEOUT after %v", statuses)
		}
		if e.job.ID != id {
			t.Fatalf("transition for job %s", e.job.ID)
		}
		statuses = append(statuses, e.status)
		switch e.status {
		case StatusPushed:
			if len(statuses) != 1 || e.job.Retry != 0 {
				t.Fatalf("PUSHED at position %d with retry %d", len(statuses), e.job.Retry)
			}
		case StatusRetry:
			if e.job.Retry != lastRetry+1 {
				t.Fatalf("retry %d after %d", e.job.Retry, lastRetry)
			}
			lastRetry = e.job.Retry
		case StatusTimeout:
			if lastRetry == 0 {
				t.Errorf("timed out without retrying")
			}
			return
		default:
			t.Fatalf("unexpected %s", e.status)
		}
	}
}

func TestNegativeTimeoutIsDropped(t *testing.T) {
	dir := &fakeDirectory{targets: map[string]*fakeTarget{}}
	q, events := startQueue(t, Config{}, dir)

	q.Push(Job{DevID: "offline", Command: "RESET", Timeout: DefaultTimeout})
	if e := next(t, events); e.status != StatusNotLog || e.job.Timeout != 0 {
		t.Errorf("transition = %s timeout %v, want NOTLOG 0", e.status, e.job.Timeout)
	}
}
