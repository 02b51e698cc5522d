package adapter

import (
	"context"
	"strings"

	"trackgate/internal/config"
	"trackgate/internal/core/model"
	"trackgate/internal/protocol/nmea"
	"trackgate/internal/session"
)

// NMEA reads GPS trackers and phone apps sending $GPRMC/$GPGGA lines after
// a $FAKID login line.
type NMEA struct{}

func (NMEA) Name() string { return "nmea" }

func (NMEA) ClientConnect(s *session.Session) error { return nil }

func (NMEA) ClientQuit(s *session.Session) {}

func (NMEA) ParseBuffer(ctx context.Context, s *session.Session, data []byte) []byte {
	lines, rest := splitFrames(data, '\n')
	for _, line := range lines {
		fix, err := nmea.Decode(line)
		if err != nil {
			config.Debugf(s.Logger(), "nmea %s: %v: %s", s.Remote(), err, line)
			continue
		}

		if fix.Kind == nmea.KindLogin {
			s.ProcessData(ctx, &model.Record{Cmd: model.CmdLogin, DevID: fix.DevID, Name: fix.Name, Raw: line})
			continue
		}
		if !fix.Valid {
			s.ProcessData(ctx, &model.Record{Cmd: model.CmdPing, DevID: s.ID(), Raw: line})
			continue
		}

		pos := model.NewPosition(s.ID(), fix.Latitude, fix.Longitude)
		pos.Protocol = "nmea"
		pos.Speed = fix.Speed
		pos.Course = fix.Course
		pos.Altitude = fix.Altitude
		pos.Satellites = uint8(fix.Satellites)
		pos.Timestamp = fix.Timestamp
		s.ProcessData(ctx, &model.Record{Cmd: model.CmdTrack, DevID: s.ID(), Position: pos, Raw: line})
	}
	return rest
}

func (NMEA) SendCommand(s *session.Session, command string, args []string) int {
	if err := s.Write([]byte(nmea.EncodeCommand(command, args...) + "\r\n")); err != nil {
		s.Logger().Printf("nmea %s: command %s: %v", s.ID(), command, err)
		return session.ActionRefused
	}
	return session.ActionSent
}

// Identify returns the id of the first $FAKID line in body.
func (NMEA) Identify(body []byte) string {
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "$FAKID") {
			continue
		}
		if fix, err := nmea.Decode(line); err == nil {
			return fix.DevID
		}
	}
	return ""
}

// Broadcast renders a track as a $FAKID line followed by $GPRMC.
func (NMEA) Broadcast(rec *model.Record) [][]byte {
	p := rec.Position
	if p == nil || !p.Valid || (rec.Cmd != model.CmdTrack && rec.Cmd != model.CmdLogin) {
		return nil
	}
	fix := &nmea.Fix{
		Kind:      nmea.KindRMC,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Speed:     p.Speed,
		Course:    p.Course,
		Timestamp: p.Timestamp,
		Valid:     true,
	}
	return [][]byte{
		[]byte(nmea.EncodeLogin(rec.DevID, rec.Name) + "\r\n"),
		[]byte(nmea.Encode(fix) + "\r\n"),
	}
}
