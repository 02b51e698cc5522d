package ais

import (
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Session correlates the fragments of multipart sentences read from one
// connection. It is not safe for concurrent use.
type Session struct {
	pending map[string]*fragments
}

type fragments struct {
	count     int
	next      int
	formatter string
	payload   strings.Builder
}

func NewSession() *Session {
	return &Session{pending: make(map[string]*fragments)}
}

// Pending returns the number of sequences waiting for more fragments.
func (s *Session) Pending() int {
	return len(s.pending)
}

// add stores one fragment. It returns the complete armored payload once the
// last fragment of the sequence arrived.
func (s *Session) add(seq, formatter string, count, num int, armored string) (string, bool, error) {
	if num == 1 {
		f := &fragments{count: count, next: 2, formatter: formatter}
		f.payload.WriteString(armored)
		s.pending[seq] = f
		return "", false, nil
	}

	f, ok := s.pending[seq]
	if !ok {
		return "", false, fmt.Errorf("%w: fragment %d/%d of sequence %q without its predecessor", ErrFragment, num, count, seq)
	}
	if f.next != num || f.count != count || f.formatter != formatter {
		delete(s.pending, seq)
		return "", false, fmt.Errorf("%w: fragment %d/%d of sequence %q does not follow", ErrFragment, num, count, seq)
	}
	f.payload.WriteString(armored)
	f.next++
	if num < count {
		return "", false, nil
	}
	delete(s.pending, seq)
	return f.payload.String(), true, nil
}

// Checksum returns the NMEA XOR checksum of the bytes between the leading
// '!' or '$' and the '*'.
func Checksum(body string) string {
	return nmea.Checksum(body)
}

// Decode parses one !AIVDM/!AIVDO sentence. It never fails: problems are
// reported through Message.Valid and Message.Err. Multipart sentences need
// a decode session; intermediate fragments come back with Partial set.
func Decode(sentence string, session *Session) *Message {
	m := &Message{}
	sentence = strings.TrimSpace(sentence)

	fields := strings.Split(sentence, ",")
	if len(fields) != 7 {
		return m.invalid(ErrFieldCount)
	}
	if !strings.HasPrefix(sentence, "!") || strings.Count(sentence, "*") != 1 {
		return m.invalid(ErrFormat)
	}

	star := strings.IndexByte(sentence, '*')
	tail := strings.SplitN(fields[6], "*", 2)
	if len(tail) != 2 || !strings.EqualFold(Checksum(sentence[1:star]), tail[1]) {
		return m.invalid(ErrChecksum)
	}

	if len(fields[0]) != 6 {
		return m.invalid(ErrFormatter)
	}
	m.Formatter = fields[0][3:]
	if m.Formatter != "VDM" && m.Formatter != "VDO" {
		return m.invalid(ErrFormatter)
	}

	count, err := strconv.Atoi(fields[1])
	if err != nil || count < 1 {
		return m.invalid(fmt.Errorf("%w: fragment count %q", ErrFormat, fields[1]))
	}
	num, err := strconv.Atoi(fields[2])
	if err != nil || num < 1 || num > count {
		return m.invalid(fmt.Errorf("%w: fragment number %q", ErrFormat, fields[2]))
	}
	pad, err := strconv.Atoi(tail[0])
	if err != nil {
		return m.invalid(fmt.Errorf("%w: fill bits %q", ErrFormat, tail[0]))
	}
	m.Channel = fields[4]

	armored := fields[5]
	if count > 1 {
		if session == nil {
			return m.invalid(ErrNoSession)
		}
		full, done, err := session.add(fields[3], m.Formatter, count, num, armored)
		if err != nil {
			return m.invalid(err)
		}
		if !done {
			m.Partial = true
			return m
		}
		armored = full
	}

	return decodePayload(armored, pad, m)
}

// DecodePayload decodes a bare armored payload.
func DecodePayload(armored string, pad int) *Message {
	return decodePayload(armored, pad, &Message{})
}

func decodePayload(armored string, pad int, m *Message) *Message {
	p, err := Unarmor(armored, pad)
	if err != nil {
		return m.invalid(err)
	}
	if p.Bits() < 38 {
		return m.invalid(ErrTruncated)
	}

	m.Type = int(p.GetInt(0, 6, false))
	m.Repeat = int(p.GetInt(6, 2, false))
	m.MMSI = fmt.Sprintf("%09d", p.GetInt(8, 30, false))
	m.Valid = true

	readDiscriminators(p, m)
	l := layoutFor(m)
	if l == nil {
		return m
	}
	if p.Bits() < l.extent() {
		return m.invalid(fmt.Errorf("%w: type %d has %d bits", ErrTruncated, m.Type, p.Bits()))
	}
	if !l.extract(p, m) {
		return m.invalid(ErrCoordinates)
	}
	return m
}
