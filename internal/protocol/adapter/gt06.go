package adapter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"trackgate/internal/config"
	"trackgate/internal/core/model"
	"trackgate/internal/protocol/gt06"
	"trackgate/internal/session"
)

// GT06 serves Concox-style trackers speaking the binary GT06 protocol.
// The login packet names the device; everything before it is dropped.
type GT06 struct {
	decoder *gt06.Decoder
}

type gt06Conn struct {
	mu     sync.Mutex
	serial uint16
}

func (c *gt06Conn) next() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serial++
	return c.serial
}

func NewGT06() *GT06 {
	d := gt06.NewDecoder()
	d.EnableDebug(config.DebugEnabled())
	return &GT06{decoder: d}
}

func (a *GT06) Name() string { return "gt06" }

func (a *GT06) ClientConnect(s *session.Session) error {
	s.SetData(&gt06Conn{})
	return nil
}

func (a *GT06) ClientQuit(s *session.Session) {}

func (a *GT06) ParseBuffer(ctx context.Context, s *session.Session, data []byte) []byte {
	for len(data) > 0 {
		n := gt06.Split(data)
		if n < 0 {
			data = resync(data)
			continue
		}
		if n == 0 {
			break
		}
		a.handle(ctx, s, data[:n])
		data = data[n:]
	}
	if len(data) == 0 || len(data) > maxPending {
		return nil
	}
	return append([]byte(nil), data...)
}

// resync skips to the next packet header, keeping a trailing byte that may
// start one.
func resync(data []byte) []byte {
	next := -1
	for _, h := range [][]byte{{0x78, 0x78}, {0x79, 0x79}} {
		if i := bytes.Index(data[1:], h); i >= 0 && (next < 0 || i+1 < next) {
			next = i + 1
		}
	}
	if next > 0 {
		return data[next:]
	}
	if last := data[len(data)-1]; last == 0x78 || last == 0x79 {
		return data[len(data)-1:]
	}
	return nil
}

func (a *GT06) handle(ctx context.Context, s *session.Session, packet []byte) {
	msg, err := a.decoder.Decode(packet)
	if err != nil {
		config.Debugf(s.Logger(), "gt06 %s: %v: % X", s.Remote(), err, packet)
		return
	}

	if msg.Protocol == gt06.LoginMsg {
		switch s.State() {
		case session.Unauthenticated:
			if s.ProcessData(ctx, &model.Record{Cmd: model.CmdLogin, DevID: msg.IMEI}) != session.Accepted {
				return
			}
		case session.Active:
			if msg.IMEI != s.ID() {
				s.Logger().Printf("gt06 %s: login of %s on the connection of %s dropped", s.Remote(), msg.IMEI, s.ID())
				return
			}
		default:
			return
		}
		a.respond(s, msg)
		return
	}

	if s.State() != session.Active {
		config.Debugf(s.Logger(), "gt06 %s: %s packet before login dropped", s.Remote(), gt06.MessageTypeName(msg.Protocol))
		return
	}

	switch msg.Protocol {
	case gt06.StringMsg:
		s.Logger().Printf("gt06 %s: command reply: %s", s.ID(), msg.Reply)
	case gt06.StatusMsg:
		s.ProcessData(ctx, &model.Record{
			Cmd:   model.CmdObd,
			DevID: s.ID(),
			Obd: map[string]interface{}{
				"powerLevel": msg.PowerLevel,
				"gsmSignal":  msg.GSMSignal,
				"charging":   msg.Charging,
				"engineOn":   msg.EngineOn,
			},
			Raw: fmt.Sprintf("%X", packet),
		})
	default:
		s.ProcessData(ctx, gt06Record(s.ID(), msg, packet))
	}
	a.respond(s, msg)
}

func (a *GT06) respond(s *session.Session, msg *gt06.Message) {
	if !gt06.NeedsResponse(msg.Protocol) {
		return
	}
	if err := s.Write(gt06.Response(msg.Protocol, msg.Serial)); err != nil {
		s.Logger().Printf("gt06 %s: response: %v", s.Remote(), err)
	}
}

func gt06Record(devID string, msg *gt06.Message, packet []byte) *model.Record {
	rec := &model.Record{Cmd: model.CmdPing, DevID: devID, Raw: fmt.Sprintf("%X", packet)}
	if !msg.HasFix || (!msg.Valid && msg.Alarm == "") {
		return rec
	}

	pos := model.NewPosition(devID, msg.Latitude, msg.Longitude)
	pos.Protocol = "gt06"
	pos.Speed = msg.Speed
	pos.Course = msg.Course
	pos.Timestamp = msg.Timestamp
	pos.Valid = msg.Valid
	pos.Satellites = uint8(msg.Satellites)

	rec.Position = pos
	rec.Cmd = model.CmdTrack
	if msg.Alarm != "" {
		rec.Cmd = model.CmdAlarm
		rec.Alarm = msg.Alarm
		pos.Status["alarm"] = msg.Alarm
		pos.Status["powerLevel"] = msg.PowerLevel
		pos.Status["gsmSignal"] = msg.GSMSignal
	}
	return rec
}

func (a *GT06) SendCommand(s *session.Session, command string, args []string) int {
	conn, ok := s.Data().(*gt06Conn)
	if !ok {
		conn = &gt06Conn{}
		s.SetData(conn)
	}
	if err := s.Write(gt06.EncodeCommand(command, args, conn.next())); err != nil {
		s.Logger().Printf("gt06 %s: command %s: %v", s.ID(), strings.ToUpper(command), err)
		return session.ActionRefused
	}
	return session.ActionSent
}
