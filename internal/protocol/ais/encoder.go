package ais

import (
	"fmt"
	"strconv"
)

var encodable = map[int]bool{1: true, 2: true, 3: true, 5: true, 18: true, 21: true, 24: true, 25: true}

// Encode renders m as a single-fragment !AIVDM sentence. Only position
// reports (1/2/3, 18), static data (5, 24), aids to navigation (21) and
// single slot binary headers (25) are supported.
func Encode(m *Message) (string, error) {
	if !encodable[m.Type] {
		return "", fmt.Errorf("%w: type %d", ErrUnsupported, m.Type)
	}
	l := layoutFor(m)
	if l == nil {
		return "", fmt.Errorf("%w: type %d part %d", ErrUnsupported, m.Type, m.PartNo)
	}
	mmsi, err := strconv.ParseInt(m.MMSI, 10, 64)
	if err != nil || mmsi < 0 || mmsi >= 1<<30 {
		return "", fmt.Errorf("invalid MMSI %q", m.MMSI)
	}

	p := NewPayload(l.bitsFor(m))
	p.PutInt(0, 6, int64(m.Type))
	p.PutInt(6, 2, int64(m.Repeat))
	p.PutInt(8, 30, mmsi)
	l.insert(p, m)

	body := "AIVDM,1,1,,A," + p.Armor() + ",0"
	return "!" + body + "*" + Checksum(body), nil
}
