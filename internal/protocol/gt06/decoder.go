package gt06

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"strings"
	"time"
)

const kmhToMs = 1000.0 / 3600.0

type Message struct {
	Protocol   byte
	Serial     uint16
	IMEI       string
	Timestamp  time.Time
	Latitude   float64
	Longitude  float64
	Speed      float64 // m/s
	Course     float64
	Valid      bool
	HasFix     bool // the message carries a GPS block
	Satellites int
	PowerLevel int
	GSMSignal  int
	Charging   bool
	EngineOn   bool
	Alarm      string
	Reply      string // command reply text
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

func (d *Decoder) logDebug(format string, v ...interface{}) {
	if d.debug {
		log.Printf("[GT06] "+format, v...)
	}
}

// Split returns the length of the first complete packet in data, 0 when more
// bytes are needed, or -1 when data does not start with a packet header.
func Split(data []byte) int {
	if len(data) < 3 {
		if len(data) > 0 && data[0] != startByte && data[0] != startByteExt {
			return -1
		}
		return 0
	}
	var size int
	switch {
	case data[0] == startByte && data[1] == startByte:
		size = 2 + 1 + int(data[2]) + 2
	case data[0] == startByteExt && data[1] == startByteExt:
		if len(data) < 4 {
			return 0
		}
		size = 2 + 2 + int(binary.BigEndian.Uint16(data[2:4])) + 2
	default:
		return -1
	}
	if len(data) < size {
		return 0
	}
	return size
}

// Decode parses one complete packet.
func (d *Decoder) Decode(data []byte) (*Message, error) {
	header, body, err := d.unwrap(data)
	if err != nil {
		return nil, err
	}

	// body: protocol, content, serial(2); crc and end bytes already checked
	msg := &Message{
		Protocol: body[0],
		Serial:   binary.BigEndian.Uint16(body[len(body)-2:]),
	}
	content := body[1 : len(body)-2]
	d.logDebug("packet header=%d protocol=0x%02x content=%d bytes serial=%d", header, msg.Protocol, len(content), msg.Serial)

	switch msg.Protocol {
	case LoginMsg:
		err = d.decodeLogin(msg, content)
	case LocationMsg:
		err = d.decodeGPS(msg, content)
	case StatusMsg:
		err = d.decodeStatus(msg, content)
	case AlarmMsg:
		err = d.decodeAlarm(msg, content)
	case StringMsg:
		err = d.decodeString(msg, content)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidMessageType, msg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", MessageTypeName(msg.Protocol), err)
	}
	return msg, nil
}

// unwrap checks framing and checksum and returns the header size and the
// protocol..serial body.
func (d *Decoder) unwrap(data []byte) (int, []byte, error) {
	size := Split(data)
	switch {
	case size < 0:
		return 0, nil, ErrInvalidHeader
	case size == 0 || size != len(data):
		return 0, nil, fmt.Errorf("%w: got %d bytes", ErrPacketTooShort, len(data))
	}

	header := 3
	if data[0] == startByteExt {
		header = 4
	}
	// length covers protocol, content, serial and crc
	if size-header-2 < 1+2+2 {
		return 0, nil, fmt.Errorf("%w: empty packet", ErrPacketTooShort)
	}
	if data[size-2] != endByte1 || data[size-1] != endByte2 {
		return 0, nil, fmt.Errorf("%w: invalid end bytes", ErrMalformedPacket)
	}

	crcPos := size - 4
	calc := Checksum(data[2:crcPos])
	recv := binary.BigEndian.Uint16(data[crcPos:])
	if calc != recv {
		return 0, nil, fmt.Errorf("%w: calc=0x%04x, recv=0x%04x", ErrInvalidChecksum, calc, recv)
	}
	return header, data[header:crcPos], nil
}

func (d *Decoder) decodeLogin(msg *Message, content []byte) error {
	if len(content) < loginSize {
		return fmt.Errorf("%w: login needs %d bytes", ErrPacketTooShort, loginSize)
	}
	imei := fmt.Sprintf("%x", content[:loginSize])
	if len(imei) > 15 {
		imei = strings.TrimPrefix(imei, "0")
	}
	msg.IMEI = imei
	return nil
}

func (d *Decoder) decodeGPS(msg *Message, content []byte) error {
	if len(content) < gpsSize {
		return fmt.Errorf("%w: gps block needs %d bytes", ErrPacketTooShort, gpsSize)
	}
	ts, err := parseTimestamp(content[:6])
	if err != nil {
		return err
	}
	msg.Timestamp = ts
	msg.HasFix = true
	msg.Satellites = int(content[6] & 0x0F)

	lat := float64(binary.BigEndian.Uint32(content[7:11])) / 60 / 30000
	lon := float64(binary.BigEndian.Uint32(content[11:15])) / 60 / 30000
	msg.Speed = math.Round(float64(content[15])*kmhToMs*100) / 100

	flags := binary.BigEndian.Uint16(content[16:18])
	msg.Course = float64(flags & 0x03FF)
	msg.Valid = flags&(1<<12) != 0
	if flags&(1<<10) == 0 {
		lat = -lat
	}
	if flags&(1<<11) != 0 {
		lon = -lon
	}
	if lat > 90 || lon > 180 || lat < -90 || lon < -180 {
		return fmt.Errorf("%w: coordinates %.6f,%.6f", ErrMalformedPacket, lat, lon)
	}
	msg.Latitude = lat
	msg.Longitude = lon
	return nil
}

func (d *Decoder) decodeStatus(msg *Message, content []byte) error {
	if len(content) < 3 {
		return fmt.Errorf("%w: status needs 3 bytes", ErrPacketTooShort)
	}
	d.terminalInfo(msg, content[0], content[1], content[2])
	return nil
}

func (d *Decoder) terminalInfo(msg *Message, info, voltage, gsm byte) {
	msg.EngineOn = info&0x02 != 0
	msg.Charging = info&0x04 != 0
	msg.PowerLevel = int(voltage)
	msg.GSMSignal = int(gsm)
}

// Alarm packets carry a GPS block, an LBS block with its length byte and
// the status block whose fourth byte is the alarm type.
func (d *Decoder) decodeAlarm(msg *Message, content []byte) error {
	if err := d.decodeGPS(msg, content); err != nil {
		return err
	}
	rest := content[gpsSize:]
	if len(rest) < 1 {
		return fmt.Errorf("%w: alarm without LBS block", ErrPacketTooShort)
	}
	// the LBS length counts its own byte
	skip := max(int(rest[0]), 1)
	if skip > len(rest) {
		return fmt.Errorf("%w: LBS length %d", ErrMalformedPacket, rest[0])
	}
	rest = rest[skip:]
	if len(rest) < statusSize-1 {
		return fmt.Errorf("%w: alarm without status block", ErrPacketTooShort)
	}
	d.terminalInfo(msg, rest[0], rest[1], rest[2])
	msg.Alarm = AlarmName(rest[3])
	return nil
}

func (d *Decoder) decodeString(msg *Message, content []byte) error {
	// length(1) + server flag(4) + text
	if len(content) < 5 {
		return fmt.Errorf("%w: reply needs 5 bytes", ErrPacketTooShort)
	}
	n := int(content[0])
	if n < 4 || 1+n > len(content) {
		return fmt.Errorf("%w: reply length %d", ErrMalformedPacket, n)
	}
	msg.Reply = strings.TrimRight(string(content[5:1+n]), "\x00")
	return nil
}

// parseTimestamp reads the binary YY MM DD hh mm ss date of the GPS block.
func parseTimestamp(b []byte) (time.Time, error) {
	year := 2000 + int(b[0])
	month, day := int(b[1]), int(b[2])
	hour, minute, second := int(b[3]), int(b[4]), int(b[5])

	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, ErrInvalidTimestamp
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC), nil
}

func MessageTypeName(protocol byte) string {
	switch protocol {
	case LoginMsg:
		return "login"
	case LocationMsg:
		return "location"
	case StatusMsg:
		return "status"
	case StringMsg:
		return "reply"
	case AlarmMsg:
		return "alarm"
	default:
		return fmt.Sprintf("unknown(0x%02x)", protocol)
	}
}

func AlarmName(alarmType byte) string {
	switch alarmType {
	case 0:
		return ""
	case sosAlarm:
		return "sos"
	case powerCutAlarm:
		return "powerCut"
	case vibrationAlarm:
		return "vibration"
	case fenceInAlarm:
		return "geofenceEnter"
	case fenceOutAlarm:
		return "geofenceExit"
	case lowBatteryAlarm:
		return "lowBattery"
	case overspeedAlarm:
		return "overspeed"
	default:
		return fmt.Sprintf("unknown_%02x", alarmType)
	}
}
