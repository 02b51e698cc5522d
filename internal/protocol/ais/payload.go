// Package ais implements the AIS (ITU-R M.1371) codec carried in !AIVDM/!AIVDO sentences
package ais

import (
	"fmt"
	"strings"
)

// Payload is an AIS binary payload held as one 6-bit value per armored character.
type Payload struct {
	sextets []byte
	bits    int
}

// Unarmor converts the armored payload field of a sentence into 6-bit values.
// pad is the number of fill bits carried in the last character.
func Unarmor(armored string, pad int) (Payload, error) {
	p := Payload{sextets: make([]byte, len(armored))}
	for i := 0; i < len(armored); i++ {
		c := armored[i]
		if c < 0x30 || (c > 0x57 && c < 0x60) || c > 0x77 {
			return Payload{}, fmt.Errorf("%w: %q at %d", ErrArmor, c, i)
		}
		v := int(c) + 0x28
		if v > 0x80 {
			v += 0x20
		} else {
			v += 0x28
		}
		p.sextets[i] = byte(v & 0x3F)
	}
	if pad < 0 || pad > 5 {
		pad = 0
	}
	p.bits = len(armored)*6 - pad
	if p.bits < 0 {
		p.bits = 0
	}
	return p, nil
}

// NewPayload returns a zero-filled payload able to hold bits bits.
func NewPayload(bits int) Payload {
	return Payload{sextets: make([]byte, (bits+5)/6), bits: bits}
}

// Bits returns the number of usable bits.
func (p Payload) Bits() int {
	return p.bits
}

// Armor renders the payload as printable characters.
func (p Payload) Armor() string {
	out := make([]byte, len(p.sextets))
	for i, v := range p.sextets {
		if v < 40 {
			out[i] = v + 48
		} else {
			out[i] = v + 56
		}
	}
	return string(out)
}

func (p Payload) bit(pos int) int64 {
	idx := pos / 6
	if pos < 0 || idx >= len(p.sextets) {
		return 0
	}
	return int64(p.sextets[idx]>>(5-pos%6)) & 1
}

func (p Payload) setBit(pos int, v int64) {
	idx := pos / 6
	if pos < 0 || idx >= len(p.sextets) {
		return
	}
	mask := byte(1) << (5 - pos%6)
	if v&1 == 1 {
		p.sextets[idx] |= mask
	} else {
		p.sextets[idx] &^= mask
	}
}

// GetInt reads length bits MSB first starting at absolute bit start. When
// signed is set and the first bit is 1 the accumulator starts as all ones,
// which sign-extends the two's complement value.
func (p Payload) GetInt(start, length int, signed bool) int64 {
	var acc int64
	if signed && p.bit(start) == 1 {
		acc = -1
	}
	for i := 0; i < length; i++ {
		acc = acc<<1 | p.bit(start+i)
	}
	return acc
}

// PutInt writes the low length bits of v at absolute bit start.
func (p Payload) PutInt(start, length int, v int64) {
	for i := 0; i < length; i++ {
		p.setBit(start+i, v>>(length-1-i))
	}
}

// GetStr reads a 6-bit ASCII string. Reading stops at the '@' terminator and
// trailing blanks are dropped.
func (p Payload) GetStr(start, length int) string {
	var b strings.Builder
	for i := 0; i+6 <= length; i += 6 {
		c := byte(p.GetInt(start+i, 6, false))
		if c < 0x20 {
			c += 0x40
		}
		if c == '@' {
			break
		}
		b.WriteByte(c)
	}
	return strings.TrimRight(b.String(), " ")
}

// PutStr writes s as 6-bit ASCII, padding with '@' up to length bits.
func (p Payload) PutStr(start, length int, s string) {
	s = strings.ToUpper(s)
	for i := 0; i*6+6 <= length; i++ {
		var v int64
		if i < len(s) {
			c := s[i]
			switch {
			case c >= 0x40 && c < 0x60:
				v = int64(c - 0x40)
			case c >= 0x20 && c < 0x40:
				v = int64(c)
			default:
				v = '?'
			}
		}
		p.PutInt(start+i*6, 6, v)
	}
}
