package h02

import (
	"errors"
	"testing"
	"time"
)

func TestH02Decoder(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    *Message
		wantErr error
	}{
		{
			name: "valid position report",
			data: []byte("*HQ,123456789012345,V1,121300,A,2237.7514,N,11408.6214,E,6.00,2,151022,FFFFFBFF#"),
			want: &Message{
				Kind:      KindPosition,
				IMEI:      "123456789012345",
				Valid:     true,
				Latitude:  22.62919,
				Longitude: 114.14369,
				Speed:     3.09, // 6 knots
				Course:    2.0,
				Timestamp: time.Date(2022, 10, 15, 12, 13, 0, 0, time.UTC),
				Status:    0xFFFFFBFF,
			},
		},
		{
			name: "southern and western hemisphere",
			data: []byte("*HQ,123456789012345,V1,000000,A,3351.2000,S,07037.8000,W,0,180,010123,FFFFFFFF#"),
			want: &Message{
				Kind:      KindPosition,
				IMEI:      "123456789012345",
				Valid:     true,
				Latitude:  -33.85333,
				Longitude: -70.63,
				Course:    180,
				Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				Status:    0xFFFFFFFF,
			},
		},
		{
			name: "sos alarm",
			data: []byte("*HQ,123456789012345,V1,121300,A,2237.7514,N,11408.6214,E,6.00,2,151022,FFFFFFFD#"),
			want: &Message{
				Kind:      KindPosition,
				IMEI:      "123456789012345",
				Valid:     true,
				Latitude:  22.62919,
				Longitude: 114.14369,
				Speed:     3.09,
				Course:    2.0,
				Timestamp: time.Date(2022, 10, 15, 12, 13, 0, 0, time.UTC),
				Status:    0xFFFFFFFD,
				Alarm:     "sos",
			},
		},
		{
			name: "no fix",
			data: []byte("*HQ,123456789012345,V1,121300,V,2237.7514,N,11408.6214,E,0,0,151022,FFFFFFFF#"),
			want: &Message{
				Kind:      KindPosition,
				IMEI:      "123456789012345",
				Latitude:  22.62919,
				Longitude: 114.14369,
				Timestamp: time.Date(2022, 10, 15, 12, 13, 0, 0, time.UTC),
				Status:    0xFFFFFFFF,
			},
		},
		{
			name: "heartbeat",
			data: []byte("*HQ,123456789012345,NBR,121300#"),
			want: &Message{Kind: KindHeartbeat, IMEI: "123456789012345"},
		},
		{
			name:    "invalid header",
			data:    []byte("*XX,123456789012345,V1"),
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "packet too short",
			data:    []byte("*HQ"),
			wantErr: ErrPacketTooShort,
		},
		{
			name:    "invalid message type",
			data:    []byte("*HQ,123456789012345,V9,121300#"),
			wantErr: ErrInvalidMessageType,
		},
		{
			name:    "invalid coordinate format",
			data:    []byte("*HQ,123456789012345,V1,121300,A,INVALID,N,11408.6214,E,6,2,151022,FFFFFFFF#"),
			wantErr: ErrInvalidCoordinate,
		},
		{
			name:    "invalid latitude range",
			data:    []byte("*HQ,123456789012345,V1,121300,A,9237.7514,N,11408.6214,E,6,2,151022,FFFFFFFF#"),
			wantErr: ErrInvalidCoordinate,
		},
		{
			name:    "invalid longitude range",
			data:    []byte("*HQ,123456789012345,V1,121300,A,2237.7514,N,19908.6214,E,6,2,151022,FFFFFFFF#"),
			wantErr: ErrInvalidCoordinate,
		},
		{
			name:    "malformed packet",
			data:    []byte("*HQ,123456789012345,V1,121300#"),
			wantErr: ErrInvalidFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder := NewDecoder()

			got, err := decoder.Decode(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}

			compareMessage(t, got, tt.want)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 5, 0, time.UTC)
	tests := []struct {
		command string
		args    []string
		want    string
	}{
		{"ALARM_OFF", nil, "*HQ,123456789012345,SCF,083005,0,0#"},
		{"RESET", nil, "*HQ,123456789012345,R1,083005#"},
		{"INTERVAL", []string{"30"}, "*HQ,123456789012345,S71,083005,22,30#"},
		{"s20", []string{"1", "3"}, "*HQ,123456789012345,S20,083005,1,3#"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := EncodeCommand("123456789012345", tt.command, tt.args, at); got != tt.want {
				t.Errorf("EncodeCommand() = %s, want %s", got, tt.want)
			}
		})
	}
}

func compareMessage(t *testing.T, got, want *Message) {
	t.Helper()
	if got.Kind != want.Kind {
		t.Errorf("Kind = %v, want %v", got.Kind, want.Kind)
	}
	if got.IMEI != want.IMEI {
		t.Errorf("IMEI = %v, want %v", got.IMEI, want.IMEI)
	}
	if got.Valid != want.Valid {
		t.Errorf("Valid = %v, want %v", got.Valid, want.Valid)
	}
	if !almostEqual(got.Latitude, want.Latitude, 0.0001) {
		t.Errorf("Latitude = %v, want %v", got.Latitude, want.Latitude)
	}
	if !almostEqual(got.Longitude, want.Longitude, 0.0001) {
		t.Errorf("Longitude = %v, want %v", got.Longitude, want.Longitude)
	}
	if !almostEqual(got.Speed, want.Speed, 0.01) {
		t.Errorf("Speed = %v, want %v", got.Speed, want.Speed)
	}
	if !almostEqual(got.Course, want.Course, 0.1) {
		t.Errorf("Course = %v, want %v", got.Course, want.Course)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	if got.Status != want.Status {
		t.Errorf("Status = %08X, want %08X", got.Status, want.Status)
	}
	if got.Alarm != want.Alarm {
		t.Errorf("Alarm = %v, want %v", got.Alarm, want.Alarm)
	}
}

// Helper function for floating point comparison
func almostEqual(a, b, epsilon float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}
