package adapter

import (
	"context"
	"strings"

	"trackgate/internal/config"
	"trackgate/internal/core/model"
	"trackgate/internal/protocol/h02"
	"trackgate/internal/session"
)

// H02 serves trackers speaking the *HQ text protocol. The IMEI of the first
// frame logs the connection in.
type H02 struct {
	decoder *h02.Decoder
}

func NewH02() *H02 {
	d := h02.NewDecoder()
	d.EnableDebug(config.DebugEnabled())
	return &H02{decoder: d}
}

func (a *H02) Name() string { return "h02" }

func (a *H02) ClientConnect(s *session.Session) error { return nil }

func (a *H02) ClientQuit(s *session.Session) {}

func (a *H02) ParseBuffer(ctx context.Context, s *session.Session, data []byte) []byte {
	frames, rest := splitFrames(data, '#')
	for _, frame := range frames {
		msg, err := a.decoder.Decode([]byte(frame))
		if err != nil {
			config.Debugf(s.Logger(), "h02 %s: %v: %s", s.Remote(), err, frame)
			continue
		}

		switch s.State() {
		case session.Unauthenticated:
			if s.ProcessData(ctx, &model.Record{Cmd: model.CmdLogin, DevID: msg.IMEI}) != session.Accepted {
				continue
			}
		case session.Active:
			if msg.IMEI != s.ID() {
				s.Logger().Printf("h02 %s: frame for %s on the connection of %s dropped", s.Remote(), msg.IMEI, s.ID())
				continue
			}
		}

		s.ProcessData(ctx, h02Record(msg, frame))
	}
	return rest
}

func h02Record(msg *h02.Message, raw string) *model.Record {
	rec := &model.Record{Cmd: model.CmdPing, DevID: msg.IMEI, Raw: raw}
	if msg.Kind != h02.KindPosition || !msg.Valid {
		return rec
	}

	pos := model.NewPosition(msg.IMEI, msg.Latitude, msg.Longitude)
	pos.Protocol = "h02"
	pos.Speed = msg.Speed
	pos.Course = msg.Course
	pos.Timestamp = msg.Timestamp
	pos.Status["status"] = msg.Status

	rec.Position = pos
	rec.Cmd = model.CmdTrack
	if msg.Alarm != "" {
		rec.Cmd = model.CmdAlarm
		rec.Alarm = msg.Alarm
		pos.Status["alarm"] = msg.Alarm
	}
	return rec
}

func (a *H02) SendCommand(s *session.Session, command string, args []string) int {
	frame := h02.EncodeCommand(s.ID(), command, args, now())
	if err := s.Write([]byte(frame)); err != nil {
		s.Logger().Printf("h02 %s: command %s: %v", s.ID(), strings.ToUpper(command), err)
		return session.ActionRefused
	}
	return session.ActionSent
}
