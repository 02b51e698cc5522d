// Package nmea decodes and encodes the NMEA0183 text sentences sent by GPS
// trackers and phone apps: $GPRMC, $GPGGA and the proprietary $FAKID login.
package nmea

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	gonmea "github.com/adrianmo/go-nmea"
)

// Common errors
var (
	ErrFormat      = errors.New("malformed NMEA sentence")
	ErrChecksum    = errors.New("invalid NMEA checksum")
	ErrNoFix       = errors.New("receiver has no fix")
	ErrUnsupported = errors.New("unsupported NMEA sentence")
)

type Kind string

const (
	KindRMC   Kind = "RMC"
	KindGGA   Kind = "GGA"
	KindLogin Kind = "LOGIN"
)

const knotsToMs = 1852.0 / 3600.0

// now is replaced in tests.
var now = time.Now

// Fix is one decoded sentence. Login sentences only carry DevID and Name.
type Fix struct {
	Kind       Kind
	DevID      string
	Name       string
	Latitude   float64
	Longitude  float64
	Speed      float64 // m/s
	Course     float64
	Altitude   float64
	Satellites int
	Timestamp  time.Time
	Valid      bool
}

// Checksum returns the XOR checksum of body as two uppercase hex digits.
func Checksum(body string) string {
	return gonmea.Checksum(body)
}

// Decode parses one line. The trailing *hh checksum is verified when present.
func Decode(line string) (*Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil, ErrFormat
	}

	s, err := parse(line)
	switch {
	case errors.Is(err, errNoFix):
		return &Fix{Kind: KindGGA}, nil
	case errors.Is(err, ErrChecksum), errors.Is(err, ErrUnsupported):
		return nil, err
	case err != nil:
		var unsupported *gonmea.NotSupportedError
		if errors.As(err, &unsupported) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, unsupported.Prefix)
		}
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	switch m := s.(type) {
	case gonmea.RMC:
		return fromRMC(m)
	case gonmea.GGA:
		return fromGGA(m), nil
	case login:
		return &Fix{Kind: KindLogin, DevID: m.DevID, Name: m.Name}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, s.Prefix())
}

const loginType = "FAKID"

// errNoFix marks a GGA sentence whose quality field says there is no fix;
// its empty coordinates would not parse.
var errNoFix = errors.New("gga without fix")

// login is the $FAKID,<id>[,<name>] sentence.
type login struct {
	gonmea.BaseSentence
	DevID string
	Name  string
}

var (
	parserMu sync.Mutex
	parser   = gonmea.SentenceParser{
		CustomParsers: map[string]gonmea.ParserFunc{loginType: parseLogin},
		ParsePrefix: func(prefix string) (string, string, error) {
			if prefix == loginType {
				return "", loginType, nil
			}
			return gonmea.ParsePrefix(prefix)
		},
		CheckCRC: func(s gonmea.BaseSentence, rawFields string) error {
			if s.Checksum != "" && s.Checksum != gonmea.Checksum(rawFields) {
				return ErrChecksum
			}
			return nil
		},
		OnBaseSentence: func(s *gonmea.BaseSentence) error {
			switch s.Type {
			case gonmea.TypeRMC, loginType:
				return nil
			case gonmea.TypeGGA:
				if len(s.Fields) > 5 && s.Fields[5] == gonmea.Invalid {
					return errNoFix
				}
				return nil
			}
			return fmt.Errorf("%w: %s", ErrUnsupported, s.Prefix())
		},
	}
)

func parse(line string) (gonmea.Sentence, error) {
	parserMu.Lock()
	defer parserMu.Unlock()
	return parser.Parse(line)
}

func parseLogin(s gonmea.BaseSentence) (gonmea.Sentence, error) {
	p := gonmea.NewParser(s)
	m := login{BaseSentence: s, DevID: p.String(0, "device id")}
	if len(s.Fields) > 1 {
		m.Name = p.String(1, "name")
	}
	if p.Err() == nil && m.DevID == "" {
		return nil, errors.New("login without id")
	}
	return m, p.Err()
}

func fromRMC(m gonmea.RMC) (*Fix, error) {
	if m.Validity != gonmea.ValidRMC {
		return nil, ErrNoFix
	}
	if !m.Date.Valid {
		return nil, fmt.Errorf("%w: RMC without date", ErrFormat)
	}
	// two digit years follow time.Parse: 69-99 are 19xx
	year := 2000 + m.Date.YY
	if m.Date.YY >= 69 {
		year = 1900 + m.Date.YY
	}
	date := time.Date(year, time.Month(m.Date.MM), m.Date.DD, 0, 0, 0, 0, time.UTC)
	return &Fix{
		Kind:      KindRMC,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Speed:     math.Round(m.Speed*knotsToMs*10) / 10,
		Course:    m.Course,
		Timestamp: atTimeOfDay(date, m.Time),
		Valid:     true,
	}, nil
}

func fromGGA(m gonmea.GGA) *Fix {
	// GGA carries no date
	today := now().UTC().Truncate(24 * time.Hour)
	return &Fix{
		Kind:       KindGGA,
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		Altitude:   m.Altitude,
		Satellites: int(m.NumSatellites),
		Timestamp:  atTimeOfDay(today, m.Time),
		Valid:      true,
	}
}

// atTimeOfDay adds the sentence time to a date. A missing time yields now.
func atTimeOfDay(date time.Time, t gonmea.Time) time.Time {
	if !t.Valid {
		return now().UTC()
	}
	return date.Add(time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Millisecond)*time.Millisecond)
}
