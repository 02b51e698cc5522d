package adapter

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackgate/internal/config"
	"trackgate/internal/core/model"
	"trackgate/internal/protocol/ais"
	"trackgate/internal/session"
)

const knotsToMs = 1852.0 / 3600.0

// now is replaced in tests.
var now = time.Now

// AIS reads !AIVDM/!AIVDO feeds. A receiver connection carries many
// vessels; each vessel heard gets its own session spawned from the
// connection's session.
type AIS struct{}

type aisReceiver struct {
	decoder *ais.Session

	mu      sync.Mutex
	vessels map[string]*session.Session
}

func (AIS) Name() string { return "ais" }

func (AIS) ClientConnect(s *session.Session) error {
	s.SetData(&aisReceiver{decoder: ais.NewSession(), vessels: make(map[string]*session.Session)})
	return nil
}

// ClientQuit logs out every vessel last heard through this receiver.
func (AIS) ClientQuit(s *session.Session) {
	rx, ok := s.Data().(*aisReceiver)
	if !ok {
		return
	}
	rx.mu.Lock()
	vessels := rx.vessels
	rx.vessels = make(map[string]*session.Session)
	rx.mu.Unlock()

	for _, v := range vessels {
		v.LogoutDev(context.Background(), "receiver disconnected")
	}
}

func (a AIS) ParseBuffer(ctx context.Context, s *session.Session, data []byte) []byte {
	rx, ok := s.Data().(*aisReceiver)
	if !ok {
		a.ClientConnect(s)
		rx = s.Data().(*aisReceiver)
	}

	lines, rest := splitFrames(data, '\n')
	for _, line := range lines {
		if !strings.HasPrefix(line, "!") {
			continue
		}
		m := ais.Decode(line, rx.decoder)
		if m.Partial {
			continue
		}
		if !m.Valid {
			config.Debugf(s.Logger(), "ais %s: %v: %s", s.Remote(), m.Err, line)
			continue
		}

		records := Records(m)
		if len(records) == 0 {
			continue
		}
		vessel := rx.vessel(ctx, s, m.MMSI)
		if vessel == nil {
			continue
		}
		for _, rec := range records {
			rec.Raw = line
			vessel.ProcessData(ctx, rec)
		}
	}
	if len(lines) > 0 {
		s.Touch()
	}
	return rest
}

// SendCommand is not supported: AIS receivers are listen-only.
func (AIS) SendCommand(s *session.Session, command string, args []string) int {
	return session.ActionUnsupported
}

func (rx *aisReceiver) vessel(ctx context.Context, s *session.Session, mmsi string) *session.Session {
	rx.mu.Lock()
	v := rx.vessels[mmsi]
	rx.mu.Unlock()
	if v != nil && v.State() == session.Active {
		return v
	}

	v = s.Spawn()
	if v.ProcessData(ctx, &model.Record{Cmd: model.CmdTmpLog, DevID: mmsi}) != session.Accepted {
		return nil
	}
	rx.mu.Lock()
	rx.vessels[mmsi] = v
	rx.mu.Unlock()
	return v
}

// Records converts a decoded message into the records it carries: a
// position, static data, or both for types 19 and 21.
func Records(m *ais.Message) []*model.Record {
	var out []*model.Record
	if m.HasPosition() {
		pos := model.NewPosition(m.MMSI, m.Lat, m.Lon)
		pos.Protocol = "ais"
		pos.Type = m.Type
		pos.Speed = m.SOG * knotsToMs
		pos.Course = m.COG
		pos.Heading = m.Heading
		pos.NavStatus = m.NavStatus
		pos.Timestamp = now()
		if m.Type == 4 || m.Type == 11 {
			if m.Year > 0 && m.Month > 0 && m.Day > 0 {
				pos.Timestamp = time.Date(m.Year, time.Month(m.Month), m.Day, m.Hour, m.Minute, m.Second, 0, time.UTC)
			}
		}
		out = append(out, &model.Record{Cmd: model.CmdTrack, DevID: m.MMSI, Position: pos})
	}

	if m.HasStatic() {
		st := &model.Static{DeviceID: m.MMSI, UpdatedAt: now()}
		switch m.Type {
		case 5:
			st.ShipName = m.ShipName
			st.CallSign = m.CallSign
			st.IMO = m.IMO
			st.Cargo = m.ShipType
			st.DimA, st.DimB, st.DimC, st.DimD = m.DimA, m.DimB, m.DimC, m.DimD
			st.Draught = m.Draught
			st.Destination = m.Destination
			if m.ETAMonth > 0 && m.ETADay > 0 {
				st.ETA = fmt.Sprintf("%02d-%02d %02d:%02d", m.ETAMonth, m.ETADay, m.ETAHour, m.ETAMinute)
			}
		case 19:
			st.ShipName = m.ShipName
			st.Cargo = m.ShipType
			st.DimA, st.DimB, st.DimC, st.DimD = m.DimA, m.DimB, m.DimC, m.DimD
		case 21:
			st.ShipName = m.ShipName + m.Text
			st.DimA, st.DimB, st.DimC, st.DimD = m.DimA, m.DimB, m.DimC, m.DimD
		case 24:
			if m.PartNo == 0 {
				st.ShipName = m.ShipName
				break
			}
			st.CallSign = m.CallSign
			st.Cargo = m.ShipType
			if !strings.HasPrefix(m.MMSI, "98") {
				st.DimA, st.DimB, st.DimC, st.DimD = m.DimA, m.DimB, m.DimC, m.DimD
			}
		}
		out = append(out, &model.Record{Cmd: model.CmdStatic, DevID: m.MMSI, Static: st})
	}
	return out
}

// Broadcast re-encodes a track as a type 1 (type 18 for class B sources)
// report and static data as a type 5 message. Devices whose id is not an
// MMSI are skipped.
func (AIS) Broadcast(rec *model.Record) [][]byte {
	mmsi, err := strconv.Atoi(rec.DevID)
	if err != nil || mmsi <= 0 || mmsi > 999999999 {
		return nil
	}
	id := fmt.Sprintf("%09d", mmsi)

	var msgs []*ais.Message
	if rec.Position != nil && rec.Position.Valid && (rec.Cmd == model.CmdTrack || rec.Cmd == model.CmdLogin) {
		p := rec.Position
		m := &ais.Message{
			Type:      1,
			MMSI:      id,
			NavStatus: p.NavStatus,
			SOG:       math.Min(math.Round(p.Speed/knotsToMs*10)/10, 102.2),
			Lon:       p.Longitude,
			Lat:       p.Latitude,
			COG:       math.Round(p.Course*10) / 10,
			Heading:   p.Heading,
			UTC:       p.Timestamp.UTC().Second(),
		}
		if p.Type == 18 || p.Type == 19 {
			m.Type = 18
		}
		msgs = append(msgs, m)
	}
	if rec.Static != nil && rec.Cmd == model.CmdStatic {
		st := rec.Static
		m := &ais.Message{
			Type:        5,
			MMSI:        id,
			IMO:         st.IMO,
			CallSign:    st.CallSign,
			ShipName:    st.ShipName,
			ShipType:    st.Cargo,
			DimA:        st.DimA,
			DimB:        st.DimB,
			DimC:        st.DimC,
			DimD:        st.DimD,
			Draught:     st.Draught,
			Destination: st.Destination,
		}
		fmt.Sscanf(st.ETA, "%d-%d %d:%d", &m.ETAMonth, &m.ETADay, &m.ETAHour, &m.ETAMinute)
		msgs = append(msgs, m)
	}

	var out [][]byte
	for _, m := range msgs {
		line, err := ais.Encode(m)
		if err != nil {
			continue
		}
		out = append(out, []byte(line+"\r\n"))
	}
	return out
}
