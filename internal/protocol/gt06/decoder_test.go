package gt06

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"
)

var (
	loginPacket = []byte{
		0x78, 0x78, // Start bytes
		0x0D,       // Packet length
		0x01,       // Protocol number (login)
		0x01, 0x23, 0x45, 0x67, 0x89, 0x01, 0x23, 0x45, // IMEI
		0x00, 0x01, // Serial number
		0x8C, 0xDD, // Checksum
		0x0D, 0x0A, // End bytes
	}

	locationPacket = []byte{
		0x78, 0x78, // Start bytes
		0x1F,       // Packet length
		0x12,       // Protocol number (location)
		0x18, 0x03, 0x01, 0x0C, 0x1E, 0x2D, // Date 2024-03-01 12:30:45
		0xCF,                   // GPS info, 15 satellites
		0x02, 0x6D, 0x87, 0x7E, // Latitude
		0x0C, 0x3F, 0x0C, 0xD2, // Longitude
		0x3C,       // Speed 60 km/h
		0x15, 0x0F, // Course 271, north, east, fixed
		0x01, 0xCC, 0x00, 0x28, 0x7D, 0x00, 0x1F, 0xB8, // LBS
		0x00, 0x02, // Serial number
		0xC1, 0x19, // Checksum
		0x0D, 0x0A, // End bytes
	}

	alarmPacket = []byte{
		0x78, 0x78, 0x25, 0x16,
		0x18, 0x03, 0x01, 0x0C, 0x1E, 0x2D, 0xCF,
		0x02, 0x6D, 0x87, 0x7E, 0x0C, 0x3F, 0x0C, 0xD2, 0x3C, 0x15, 0x0F,
		0x09, 0x01, 0xCC, 0x00, 0x28, 0x7D, 0x00, 0x1F, 0xB8, // LBS with length
		0x06, 0x04, 0x03, 0x01, 0x02, // Terminal info, voltage, GSM, SOS, language
		0x00, 0x03, 0xB2, 0x62, 0x0D, 0x0A,
	}

	statusPacket = []byte{
		0x78, 0x78, 0x0A, 0x13,
		0x06, 0x04, 0x03, 0x00, 0x02,
		0x00, 0x04, 0x22, 0x4E, 0x0D, 0x0A,
	}
)

func TestGT06Decoder(t *testing.T) {
	fixTime := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	corrupt := append([]byte(nil), locationPacket...)
	corrupt[12] ^= 0x01

	tests := []struct {
		name    string
		data    []byte
		want    *Message
		wantErr error
	}{
		{
			name: "login packet",
			data: loginPacket,
			want: &Message{Protocol: LoginMsg, Serial: 1, IMEI: "123456789012345"},
		},
		{
			name: "location packet",
			data: locationPacket,
			want: &Message{
				Protocol:   LocationMsg,
				Serial:     2,
				Timestamp:  fixTime,
				Latitude:   22.62919,
				Longitude:  114.14369,
				Speed:      16.67,
				Course:     271,
				Valid:      true,
				HasFix:     true,
				Satellites: 15,
			},
		},
		{
			name: "alarm packet",
			data: alarmPacket,
			want: &Message{
				Protocol:   AlarmMsg,
				Serial:     3,
				Timestamp:  fixTime,
				Latitude:   22.62919,
				Longitude:  114.14369,
				Speed:      16.67,
				Course:     271,
				Valid:      true,
				HasFix:     true,
				Satellites: 15,
				EngineOn:   true,
				Charging:   true,
				PowerLevel: 4,
				GSMSignal:  3,
				Alarm:      "sos",
			},
		},
		{
			name: "status packet",
			data: statusPacket,
			want: &Message{Protocol: StatusMsg, Serial: 4, EngineOn: true, Charging: true, PowerLevel: 4, GSMSignal: 3},
		},
		{
			name:    "invalid header",
			data:    []byte{0x79, 0x78, 0x05, 0x01, 0x00, 0x01, 0xD9, 0xDC, 0x0D, 0x0A},
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "truncated",
			data:    locationPacket[:20],
			wantErr: ErrPacketTooShort,
		},
		{
			name:    "corrupted payload",
			data:    corrupt,
			wantErr: ErrInvalidChecksum,
		},
		{
			name:    "unsupported protocol",
			data:    Frame(0x99, []byte{0x01}, 7),
			wantErr: ErrInvalidMessageType,
		},
		{
			name:    "invalid date",
			data:    Frame(LocationMsg, append([]byte{0x18, 0x0D, 0x01, 0x0C, 0x1E, 0x2D}, locationPacket[10:22]...), 5),
			wantErr: ErrInvalidTimestamp,
		},
	}

	decoder := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decoder.Decode(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error = %v", err)
			}
			compareMessage(t, got, tt.want)
		})
	}
}

func compareMessage(t *testing.T, got, want *Message) {
	t.Helper()
	if got.Protocol != want.Protocol || got.Serial != want.Serial || got.IMEI != want.IMEI {
		t.Errorf("header = 0x%02x/%d/%q, want 0x%02x/%d/%q", got.Protocol, got.Serial, got.IMEI, want.Protocol, want.Serial, want.IMEI)
	}
	if !almostEqual(got.Latitude, want.Latitude, 1e-6) || !almostEqual(got.Longitude, want.Longitude, 1e-6) {
		t.Errorf("position = %f,%f, want %f,%f", got.Latitude, got.Longitude, want.Latitude, want.Longitude)
	}
	if !almostEqual(got.Speed, want.Speed, 0.001) || got.Course != want.Course {
		t.Errorf("speed/course = %f/%f, want %f/%f", got.Speed, got.Course, want.Speed, want.Course)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	if got.Valid != want.Valid || got.HasFix != want.HasFix || got.Satellites != want.Satellites {
		t.Errorf("fix = %v/%v/%d, want %v/%v/%d", got.Valid, got.HasFix, got.Satellites, want.Valid, want.HasFix, want.Satellites)
	}
	if got.EngineOn != want.EngineOn || got.Charging != want.Charging || got.PowerLevel != want.PowerLevel || got.GSMSignal != want.GSMSignal {
		t.Errorf("terminal = %+v, want %+v", got, want)
	}
	if got.Alarm != want.Alarm {
		t.Errorf("Alarm = %q, want %q", got.Alarm, want.Alarm)
	}
}

func TestSouthWestHemisphere(t *testing.T) {
	content := append([]byte(nil), locationPacket[4:30]...)
	content[16] = 0x18 // fixed, west, south
	msg, err := NewDecoder().Decode(Frame(LocationMsg, content, 9))
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(msg.Latitude, -22.62919, 1e-6) || !almostEqual(msg.Longitude, -114.14369, 1e-6) {
		t.Errorf("position = %f,%f", msg.Latitude, msg.Longitude)
	}
}

func TestSplit(t *testing.T) {
	stream := append(append([]byte(nil), loginPacket...), locationPacket[:10]...)
	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"empty", nil, 0},
		{"header only", loginPacket[:2], 0},
		{"complete then partial", stream, len(loginPacket)},
		{"partial", locationPacket[:10], 0},
		{"garbage", []byte("hello"), -1},
		{"extended header", []byte{0x79, 0x79, 0x00, 0x05, 0x21, 0x00, 0x01, 0x00, 0x00, 0x0D, 0x0A}, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Split(tt.data); got != tt.want {
				t.Errorf("Split() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	if got := Checksum([]byte("123456789")); got != 0x906E {
		t.Errorf("Checksum(123456789) = 0x%04x, want 0x906e", got)
	}
}

func TestResponse(t *testing.T) {
	want := []byte{0x78, 0x78, 0x05, 0x01, 0x00, 0x01, 0xD9, 0xDC, 0x0D, 0x0A}
	if got := Response(LoginMsg, 1); !bytes.Equal(got, want) {
		t.Errorf("Response() = % X, want % X", got, want)
	}
	if NeedsResponse(LocationMsg) || !NeedsResponse(StatusMsg) {
		t.Error("NeedsResponse mismatch")
	}
}

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		command string
		args    []string
		want    string
	}{
		{"RESET", nil, "RESET#"},
		{"interval", []string{"60"}, "TIMER,60#"},
		{"ALARM_OFF", nil, "SOS,D#"},
		{"relay", []string{"1"}, "RELAY,1#"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			pkt := EncodeCommand(tt.command, tt.args, 42)
			if pkt[3] != CommandMsg {
				t.Fatalf("protocol = 0x%02x", pkt[3])
			}
			content := pkt[4 : len(pkt)-6]
			if int(content[0]) != 4+len(tt.want) {
				t.Errorf("command length = %d", content[0])
			}
			if got := string(content[5:]); got != tt.want {
				t.Errorf("command = %q, want %q", got, tt.want)
			}
			// the tracker echoes commands back in a 0x15 string packet
			reply, err := NewDecoder().Decode(Frame(StringMsg, content, 42))
			if err != nil || reply.Reply != tt.want {
				t.Errorf("reply = %+v, %v", reply, err)
			}
		})
	}
}

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
