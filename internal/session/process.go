package session

import (
	"context"
	"fmt"
	"time"

	"trackgate/internal/core/model"
	"trackgate/internal/event"
)

// AlarmLimit is the number of consecutive alarms after which the gateway
// asks the device to silence itself.
const AlarmLimit = 5

type Verdict int

const (
	Rejected Verdict = iota
	Ignored
	Accepted
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Ignored:
		return "ignored"
	}
	return "rejected"
}

// ProcessData runs one record through the state machine.
func (s *Session) ProcessData(ctx context.Context, rec *model.Record) Verdict {
	s.mu.Lock()
	s.lastSeen = time.Now()
	state := s.state
	id := s.id
	s.mu.Unlock()

	switch state {
	case Removed:
		return Rejected
	case Unauthenticated, Pending:
		switch rec.Cmd {
		case model.CmdLogin:
			return s.login(ctx, rec, false)
		case model.CmdTmpLog:
			return s.login(ctx, rec, true)
		}
		s.opts.Logger.Printf("session %s: %s before login rejected", s.opts.Remote, rec.Cmd)
		return Rejected
	}

	switch rec.Cmd {
	case model.CmdLogin, model.CmdTmpLog:
		return Ignored
	case model.CmdPing:
		s.accept(id, rec)
		return Accepted
	case model.CmdTrack:
		return s.track(ctx, id, rec)
	case model.CmdAlarm:
		return s.alarm(ctx, id, rec)
	case model.CmdObd:
		if err := s.opts.Backend.UpdateObdDev(ctx, id, rec.Obd); err != nil {
			s.notice(id, "backend", "obd: "+err.Error())
		}
		s.accept(id, rec)
		return Accepted
	case model.CmdStatic:
		return s.updateStatic(ctx, id, rec)
	case model.CmdLogout:
		s.LogoutDev(ctx, "device logout")
		return Accepted
	}
	s.opts.Logger.Printf("session %s: unknown command %q", id, rec.Cmd)
	return Rejected
}

func (s *Session) login(ctx context.Context, rec *model.Record, speculative bool) Verdict {
	if rec.DevID == "" {
		return Rejected
	}

	s.mu.Lock()
	if s.state == Pending {
		s.mu.Unlock()
		return Ignored
	}
	s.id = rec.DevID
	s.name = rec.Name
	s.state = Pending
	if speculative {
		s.state = Active
	}
	epoch := s.epoch
	s.mu.Unlock()

	if s.opts.Owner != nil {
		if prev := s.opts.Owner.Register(s); prev != nil && prev != s {
			prev.Close()
		}
	}

	err := s.opts.Backend.LoginDev(ctx, rec.DevID, rec.Name, s.protocol())

	s.mu.Lock()
	if s.epoch != epoch || s.state == Removed {
		// removed while the backend was answering
		s.mu.Unlock()
		return Rejected
	}
	if err != nil && !speculative {
		s.state = Unauthenticated
		s.mu.Unlock()
		if s.opts.Owner != nil {
			s.opts.Owner.Unregister(s)
		}
		s.notice(rec.DevID, "login", err.Error())
		return Rejected
	}
	s.state = Active
	s.mu.Unlock()

	if err != nil {
		s.notice(rec.DevID, "backend", "login: "+err.Error())
	}
	s.publish(event.Event{Kind: event.KindDevAuth, DevID: rec.DevID, Info: rec.Name})
	s.accept(rec.DevID, rec)

	if rec.Position != nil {
		s.track(ctx, rec.DevID, rec)
	}
	return Accepted
}

func (s *Session) track(ctx context.Context, id string, rec *model.Record) Verdict {
	pos := rec.Position
	if pos == nil || !pos.Valid || !pos.InRange() {
		return Rejected
	}
	if pos.DeviceID == "" {
		pos.DeviceID = id
	}

	s.mu.Lock()
	first := s.last == nil
	reason := s.opts.Filter.Check(s.last, pos, &s.errorCount)
	if reason == "" {
		p := *pos
		s.last = &p
		s.errorCount = 0
		s.alarmCount = 0
	}
	s.mu.Unlock()

	if reason != "" {
		if err := s.opts.Backend.IgnorePosDev(ctx, pos); err != nil {
			s.notice(id, "backend", "ignore: "+err.Error())
		}
		return Ignored
	}

	if err := s.opts.Backend.UpdatePosDev(ctx, pos); err != nil {
		s.notice(id, "backend", "position: "+err.Error())
	}
	if first {
		s.publish(event.Event{Kind: event.KindDevPos, DevID: id})
	}
	s.accept(id, rec)
	return Accepted
}

func (s *Session) alarm(ctx context.Context, id string, rec *model.Record) Verdict {
	s.mu.Lock()
	s.alarmCount++
	silence := s.alarmCount >= AlarmLimit
	if silence {
		s.alarmCount = 0
	}
	s.mu.Unlock()

	if err := s.opts.Backend.UpdateAlarmDev(ctx, id, rec.Alarm, rec.Position); err != nil {
		s.notice(id, "backend", "alarm: "+err.Error())
	}
	s.accept(id, rec)

	if silence && s.opts.Owner != nil {
		s.opts.Owner.Enqueue(id, model.ActionAlarmOff, nil)
		s.notice(id, "alarm", fmt.Sprintf("%d consecutive alarms, %s queued", AlarmLimit, model.ActionAlarmOff))
	}
	return Accepted
}

func (s *Session) updateStatic(ctx context.Context, id string, rec *model.Record) Verdict {
	if rec.Static == nil {
		return Rejected
	}
	in := *rec.Static
	in.DeviceID = id

	s.mu.Lock()
	s.static.Merge(&in)
	merged := s.static
	if merged.ShipName != "" && s.name == "" {
		s.name = merged.ShipName
	}
	s.mu.Unlock()

	if err := s.opts.Backend.UpdateStaticDev(ctx, &merged); err != nil {
		s.notice(id, "backend", "static: "+err.Error())
	}
	s.accept(id, rec)
	return Accepted
}

func (s *Session) accept(id string, rec *model.Record) {
	s.publish(event.Event{Kind: event.KindAccept, DevID: id, Status: rec.Cmd, Info: s.protocol(), Record: rec})
}

func (s *Session) protocol() string {
	if s.opts.Adapter == nil {
		return ""
	}
	return s.opts.Adapter.Name()
}
