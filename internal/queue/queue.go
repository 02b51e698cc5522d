// Package queue serializes commands to devices. One worker drains a FIFO
// so two commands never interleave on the wire.
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"trackgate/internal/core/util"
)

type Status string

const (
	StatusPushed    Status = "PUSHED"
	StatusBroadcast Status = "BROADCAST"
	StatusRetry     Status = "RETRY"
	StatusTimeout   Status = "TIMEOUT"
	StatusNotLog    Status = "NOTLOG"
	StatusSent      Status = "SENT"
	StatusRefused   Status = "REFUSED"
	StatusUnknown   Status = "UNKNOWN"
)

// DefaultTimeout asks the pusher to apply its configured job timeout.
const DefaultTimeout time.Duration = -1

// Job is one command request. An empty or "0" DevID addresses every active
// session. Timeout 0 means the job is dropped when the device is offline.
type Job struct {
	ID       string        `json:"id"`
	DevID    string        `json:"devId"`
	Command  string        `json:"command"`
	Args     []string      `json:"args,omitempty"`
	Retry    int           `json:"retry"`
	Timeout  time.Duration `json:"timeout"`
	Deadline time.Time     `json:"deadline"`
	Parent   string        `json:"parent,omitempty"`
	SubIndex int           `json:"subIndex,omitempty"`
}

func (j *Job) IsBroadcast() bool {
	return j.DevID == "" || j.DevID == "0"
}

// Target receives commands; RequestAction returns 0 sent, -1 refused,
// -2 unsupported.
type Target interface {
	RequestAction(command string, args []string) int
}

// Directory resolves device ids to active sessions.
type Directory interface {
	Target(devID string) (Target, bool)
	ActiveIDs() []string
}

// Notifier is told about every job transition.
type Notifier func(status Status, job Job)

type Config struct {
	RetryDelay   time.Duration
	CommandDelay time.Duration // pause after a command was sent
}

type Queue struct {
	cfg    Config
	dir    Directory
	notify Notifier
	logger *log.Logger

	mu     sync.Mutex
	jobs   []*Job
	timers map[*time.Timer]struct{}
	wake   chan struct{}
}

func New(cfg Config, dir Directory, notify Notifier, logger *log.Logger) *Queue {
	if notify == nil {
		notify = func(Status, Job) {}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		cfg:    cfg,
		dir:    dir,
		notify: notify,
		logger: logger,
		timers: make(map[*time.Timer]struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Push appends a job and returns its id.
func (q *Queue) Push(job Job) string {
	if job.ID == "" {
		job.ID = util.GenerateID()
	}
	if job.Timeout < 0 {
		job.Timeout = 0
	}
	if job.Timeout > 0 && job.Deadline.IsZero() {
		job.Deadline = time.Now().Add(job.Timeout)
	}
	// the worker owns the job once it is queued
	q.notify(StatusPushed, job)
	q.enqueue(&job)
	return job.ID
}

// Len returns the number of jobs waiting, retries in flight excluded.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *Queue) enqueue(job *Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job
}

// Run is the single worker. It returns when ctx is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	defer q.stopTimers()

	for {
		job := q.pop()
		if job == nil {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		pause := q.process(job)
		if pause <= 0 {
			continue
		}
		t := time.NewTimer(pause)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// process handles one job and returns how long the worker must pause.
func (q *Queue) process(job *Job) time.Duration {
	if job.IsBroadcast() {
		for i, id := range q.dir.ActiveIDs() {
			sub := &Job{
				ID:       util.GenerateID(),
				DevID:    id,
				Command:  job.Command,
				Args:     job.Args,
				Timeout:  job.Timeout,
				Deadline: job.Deadline,
				Parent:   job.ID,
				SubIndex: i + 1,
			}
			q.notify(StatusPushed, *sub)
			q.enqueue(sub)
		}
		q.notify(StatusBroadcast, *job)
		return 0
	}

	target, ok := q.dir.Target(job.DevID)
	if !ok {
		q.retry(job)
		return 0
	}

	switch target.RequestAction(job.Command, job.Args) {
	case 0:
		q.notify(StatusSent, *job)
		return q.cfg.CommandDelay
	case -1:
		q.notify(StatusRefused, *job)
	default:
		q.notify(StatusUnknown, *job)
	}
	return 0
}

func (q *Queue) retry(job *Job) {
	if job.Timeout == 0 {
		q.notify(StatusNotLog, *job)
		return
	}
	if !time.Now().Before(job.Deadline) {
		q.logger.Printf("queue: %s for %s timed out after %d retries", job.Command, job.DevID, job.Retry)
		q.notify(StatusTimeout, *job)
		return
	}

	job.Retry++
	q.notify(StatusRetry, *job)

	q.mu.Lock()
	defer q.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(q.cfg.RetryDelay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		q.enqueue(job)
	})
	q.timers[t] = struct{}{}
}

func (q *Queue) stopTimers() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for t := range q.timers {
		t.Stop()
		delete(q.timers, t)
	}
}
