// Package h02 implements the H02 text protocol spoken by many low-cost GPS
// trackers: frames of the form *HQ,<imei>,<type>,...#.
package h02

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrPacketTooShort     = errors.New("packet too short")
	ErrInvalidHeader      = errors.New("invalid header")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")
)

// Message kinds.
const (
	KindPosition  = "position"
	KindHeartbeat = "heartbeat"
	KindReply     = "reply"
)

const (
	startSequence = "*HQ,"
	endByte       = '#'
	minLength     = 8

	positionReport = "V1"
	commandReply   = "V4"
	heartbeat      = "NBR"
	link           = "LINK"

	knotsToMs = 1852.0 / 3600.0
)

// Alarm bits of the status word. H02 reports an alarm by clearing its bit.
const (
	bitVibration = 0
	bitSOS       = 1
	bitOverspeed = 2
	bitPowerCut  = 19
)

type Message struct {
	Kind      string
	IMEI      string
	Type      string
	Latitude  float64
	Longitude float64
	Speed     float64 // m/s
	Course    float64
	Timestamp time.Time
	Valid     bool
	Status    uint32
	Alarm     string
	Reply     []string // V4 acknowledgement fields
}

type Decoder struct {
	debug bool
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) EnableDebug(enable bool) {
	d.debug = enable
}

// Decode parses one frame, with or without the trailing '#'.
func (d *Decoder) Decode(frame []byte) (*Message, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) < minLength {
		return nil, ErrPacketTooShort
	}
	if !bytes.HasPrefix(frame, []byte(startSequence)) {
		return nil, ErrInvalidHeader
	}
	frame = bytes.TrimSuffix(frame, []byte{endByte})

	parts := strings.Split(string(frame[len(startSequence):]), ",")
	if len(parts) < 2 || parts[0] == "" {
		return nil, ErrInvalidFormat
	}
	if d.debug {
		log.Printf("h02: %s %s (%d fields)", parts[0], parts[1], len(parts))
	}

	msg := &Message{IMEI: parts[0], Type: parts[1]}
	switch parts[1] {
	case positionReport:
		if err := d.decodePosition(msg, parts); err != nil {
			return nil, err
		}
		return msg, nil
	case heartbeat, link:
		msg.Kind = KindHeartbeat
		return msg, nil
	case commandReply:
		msg.Kind = KindReply
		msg.Reply = parts[2:]
		return msg, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidMessageType, parts[1])
}

// *HQ,imei,V1,hhmmss,A,ddmm.mmmm,N,dddmm.mmmm,E,speed,course,ddmmyy,status
func (d *Decoder) decodePosition(msg *Message, parts []string) error {
	if len(parts) < 12 {
		return ErrInvalidFormat
	}
	msg.Kind = KindPosition
	msg.Valid = parts[3] == "A"

	lat, err := parseCoordinate(parts[4], parts[5], 90)
	if err != nil {
		return err
	}
	lon, err := parseCoordinate(parts[6], parts[7], 180)
	if err != nil {
		return err
	}
	msg.Latitude, msg.Longitude = lat, lon

	if knots, err := strconv.ParseFloat(parts[8], 64); err == nil {
		msg.Speed = math.Round(knots*knotsToMs*100) / 100
	}
	if course, err := strconv.ParseFloat(parts[9], 64); err == nil {
		msg.Course = course
	}

	ts, err := time.Parse("150405 020106", parts[2]+" "+parts[10])
	if err != nil {
		return fmt.Errorf("%w: time %s %s", ErrInvalidFormat, parts[2], parts[10])
	}
	msg.Timestamp = ts

	if len(parts) > 11 {
		if status, err := strconv.ParseUint(parts[11], 16, 32); err == nil {
			msg.Status = uint32(status)
			msg.Alarm = alarmOf(msg.Status)
		}
	}
	return nil
}

func alarmOf(status uint32) string {
	cleared := func(bit uint) bool { return status&(1<<bit) == 0 }
	switch {
	case cleared(bitSOS):
		return "sos"
	case cleared(bitPowerCut):
		return "powerCut"
	case cleared(bitOverspeed):
		return "overspeed"
	case cleared(bitVibration):
		return "vibration"
	}
	return ""
}

// parseCoordinate converts (d)ddmm.mmmm plus hemisphere to signed degrees.
func parseCoordinate(value, hemisphere string, limit float64) (float64, error) {
	dot := strings.IndexByte(value, '.')
	if dot < 0 {
		dot = len(value)
	}
	if dot < 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, value)
	}
	degrees, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, value)
	}
	minutes, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil || minutes >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, value)
	}

	v := degrees + minutes/60
	if v > limit {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinate, value)
	}
	switch hemisphere {
	case "S", "W":
		v = -v
	case "N", "E":
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrInvalidCoordinate, hemisphere)
	}
	return v, nil
}
