package ais

import (
	"errors"
	"strings"
	"testing"
)

func TestUnarmor(t *testing.T) {
	tests := []struct {
		name    string
		armored string
		pad     int
		want    []byte
		bits    int
		wantErr bool
	}{
		{"lowest", "0", 0, []byte{0}, 6, false},
		{"upper range end", "W", 0, []byte{39}, 6, false},
		{"second range start", "`", 0, []byte{40}, 6, false},
		{"highest", "w", 0, []byte{63}, 6, false},
		{"fill bits", "1w", 2, []byte{1, 63}, 10, false},
		{"below range", "/", 0, nil, 0, true},
		{"gap", "X", 0, nil, 0, true},
		{"above range", "x", 0, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Unarmor(tt.armored, tt.pad)
			if tt.wantErr {
				if !errors.Is(err, ErrArmor) {
					t.Fatalf("Unarmor() error = %v, want ErrArmor", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unarmor() error = %v", err)
			}
			if string(p.sextets) != string(tt.want) {
				t.Errorf("sextets = %v, want %v", p.sextets, tt.want)
			}
			if p.Bits() != tt.bits {
				t.Errorf("Bits() = %d, want %d", p.Bits(), tt.bits)
			}
		})
	}
}

func TestArmorInvertsUnarmor(t *testing.T) {
	const armored = "B69>7mh0?B<:>05B0`0e8TN000000"
	p, err := Unarmor(armored, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Armor(); got != armored {
		t.Errorf("Armor() = %q, want %q", got, armored)
	}
}

func TestGetIntZeroPayload(t *testing.T) {
	p, err := Unarmor(strings.Repeat("0", 28), 0)
	if err != nil {
		t.Fatal(err)
	}
	for start := 0; start < p.Bits(); start++ {
		for length := 1; start+length <= p.Bits() && length <= 64; length++ {
			if v := p.GetInt(start, length, false); v != 0 {
				t.Fatalf("GetInt(%d, %d) = %d, want 0", start, length, v)
			}
		}
	}
}

func TestGetIntOnesPayloadSigned(t *testing.T) {
	p, err := Unarmor(strings.Repeat("w", 28), 0)
	if err != nil {
		t.Fatal(err)
	}
	for start := 0; start < p.Bits(); start++ {
		for length := 1; start+length <= p.Bits() && length <= 64; length++ {
			if v := p.GetInt(start, length, true); v != -1 {
				t.Fatalf("GetInt(%d, %d, signed) = %d, want -1", start, length, v)
			}
		}
	}
}

func TestPutIntGetInt(t *testing.T) {
	tests := []struct {
		start, length int
		value         int64
		signed        bool
	}{
		{0, 6, 18, false},
		{8, 30, 412321751, false},
		{42, 8, -128, true},
		{42, 8, 127, true},
		{61, 28, -1200000, true},
		{89, 27, 54000000, true},
		{5, 3, 5, false},
	}

	for _, tt := range tests {
		p := NewPayload(168)
		p.PutInt(tt.start, tt.length, tt.value)
		if got := p.GetInt(tt.start, tt.length, tt.signed); got != tt.value {
			t.Errorf("GetInt(%d, %d) = %d, want %d", tt.start, tt.length, got, tt.value)
		}
	}
}

func TestGetStr(t *testing.T) {
	tests := []struct {
		name  string
		value string
		width int
		want  string
	}{
		{"plain", "WDA9674", 42, "WDA9674"},
		{"punctuation kept", "MT.MITCHELL", 120, "MT.MITCHELL"},
		{"trailing blanks trimmed", "SEATTLE   ", 120, "SEATTLE"},
		{"lower case raised", "seattle", 120, "SEATTLE"},
		{"truncated to width", "ABCDEFGHIJ", 30, "ABCDE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPayload(168)
			p.PutStr(12, tt.width, tt.value)
			if got := p.GetStr(12, tt.width); got != tt.want {
				t.Errorf("GetStr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetStrStopsAtTerminator(t *testing.T) {
	p := NewPayload(36)
	p.PutStr(0, 36, "AB")
	p.PutInt(24, 6, 'C'-0x40)
	if got := p.GetStr(0, 36); got != "AB" {
		t.Errorf("GetStr() = %q, want %q", got, "AB")
	}
}

func TestGetStrHighValuesPassThrough(t *testing.T) {
	p := NewPayload(12)
	p.PutInt(0, 6, 0x30) // '0'
	p.PutInt(6, 6, 0x21) // '!'
	if got := p.GetStr(0, 12); got != "0!" {
		t.Errorf("GetStr() = %q, want %q", got, "0!")
	}
}
