package ais

import (
	"math"
	"strings"
)

type kind uint8

const (
	unsigned kind = iota
	signed
	text
	varText // runs to the end of the payload
)

// field describes where one value lives in the payload and which Message
// member receives it. Exactly one of num, real or str is set.
type field struct {
	start int
	width int
	kind  kind
	div   float64 // real values are raw/div
	bound float64 // |value| above bound marks the message invalid

	num  func(*Message) *int
	real func(*Message) *float64
	str  func(*Message) *string
}

// layout is the field table of one message type (or sub-type).
type layout struct {
	bits   int // nominal length used when encoding
	fields []field
}

func unum(start, width int, n func(*Message) *int) field {
	return field{start: start, width: width, kind: unsigned, num: n}
}

func snum(start, width int, n func(*Message) *int) field {
	return field{start: start, width: width, kind: signed, num: n}
}

func ureal(start, width int, div float64, f func(*Message) *float64) field {
	return field{start: start, width: width, kind: unsigned, div: div, real: f}
}

func sreal(start, width int, div float64, f func(*Message) *float64) field {
	return field{start: start, width: width, kind: signed, div: div, real: f}
}

func coord(start, width int, div, bound float64, f func(*Message) *float64) field {
	return field{start: start, width: width, kind: signed, div: div, bound: bound, real: f}
}

func txt(start, width int, f func(*Message) *string) field {
	return field{start: start, width: width, kind: text, str: f}
}

func vtxt(start int, f func(*Message) *string) field {
	return field{start: start, kind: varText, str: f}
}

func dims(at ...int) []field {
	return []field{
		unum(at[0], 9, func(m *Message) *int { return &m.DimA }),
		unum(at[1], 9, func(m *Message) *int { return &m.DimB }),
		unum(at[2], 6, func(m *Message) *int { return &m.DimC }),
		unum(at[3], 6, func(m *Message) *int { return &m.DimD }),
	}
}

func join(parts ...[]field) []field {
	var out []field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

var (
	positionA = layout{bits: 168, fields: []field{
		unum(38, 4, func(m *Message) *int { return &m.NavStatus }),
		snum(42, 8, func(m *Message) *int { return &m.ROT }),
		ureal(50, 10, 10, func(m *Message) *float64 { return &m.SOG }),
		unum(60, 1, func(m *Message) *int { return &m.Accuracy }),
		coord(61, 28, 600000, 180, func(m *Message) *float64 { return &m.Lon }),
		coord(89, 27, 600000, 90, func(m *Message) *float64 { return &m.Lat }),
		ureal(116, 12, 10, func(m *Message) *float64 { return &m.COG }),
		unum(128, 9, func(m *Message) *int { return &m.Heading }),
		unum(137, 6, func(m *Message) *int { return &m.UTC }),
	}}

	positionBFields = []field{
		ureal(46, 10, 10, func(m *Message) *float64 { return &m.SOG }),
		unum(56, 1, func(m *Message) *int { return &m.Accuracy }),
		coord(57, 28, 600000, 180, func(m *Message) *float64 { return &m.Lon }),
		coord(85, 27, 600000, 90, func(m *Message) *float64 { return &m.Lat }),
		ureal(112, 12, 10, func(m *Message) *float64 { return &m.COG }),
		unum(124, 9, func(m *Message) *int { return &m.Heading }),
		unum(134, 6, func(m *Message) *int { return &m.UTC }),
	}

	positionB = layout{bits: 168, fields: positionBFields}

	extendedB = layout{bits: 312, fields: join(positionBFields, []field{
		txt(143, 120, func(m *Message) *string { return &m.ShipName }),
		unum(263, 8, func(m *Message) *int { return &m.ShipType }),
	}, dims(271, 280, 289, 295), []field{
		unum(301, 4, func(m *Message) *int { return &m.EPFD }),
	})}

	staticVoyage = layout{bits: 424, fields: join([]field{
		unum(38, 2, func(m *Message) *int { return &m.AISVersion }),
		unum(40, 30, func(m *Message) *int { return &m.IMO }),
		txt(70, 42, func(m *Message) *string { return &m.CallSign }),
		txt(112, 120, func(m *Message) *string { return &m.ShipName }),
		unum(232, 8, func(m *Message) *int { return &m.ShipType }),
	}, dims(240, 249, 258, 264), []field{
		unum(270, 4, func(m *Message) *int { return &m.EPFD }),
		unum(274, 4, func(m *Message) *int { return &m.ETAMonth }),
		unum(278, 5, func(m *Message) *int { return &m.ETADay }),
		unum(283, 5, func(m *Message) *int { return &m.ETAHour }),
		unum(288, 6, func(m *Message) *int { return &m.ETAMinute }),
		ureal(294, 8, 10, func(m *Message) *float64 { return &m.Draught }),
		txt(302, 120, func(m *Message) *string { return &m.Destination }),
	})}

	partNo = unum(38, 2, func(m *Message) *int { return &m.PartNo })

	staticB0 = layout{bits: 160, fields: []field{
		partNo,
		txt(40, 120, func(m *Message) *string { return &m.ShipName }),
	}}

	staticB1Head = []field{
		partNo,
		unum(40, 8, func(m *Message) *int { return &m.ShipType }),
		txt(48, 42, func(m *Message) *string { return &m.VendorID }),
		txt(90, 42, func(m *Message) *string { return &m.CallSign }),
	}

	staticB1 = layout{bits: 168, fields: join(staticB1Head, dims(132, 141, 150, 156))}

	staticB1Auxiliary = layout{bits: 168, fields: join(staticB1Head, []field{
		unum(132, 30, func(m *Message) *int { return &m.Mothership }),
	})}

	baseStation = layout{bits: 168, fields: []field{
		unum(38, 14, func(m *Message) *int { return &m.Year }),
		unum(52, 4, func(m *Message) *int { return &m.Month }),
		unum(56, 5, func(m *Message) *int { return &m.Day }),
		unum(61, 5, func(m *Message) *int { return &m.Hour }),
		unum(66, 6, func(m *Message) *int { return &m.Minute }),
		unum(72, 6, func(m *Message) *int { return &m.Second }),
		unum(78, 1, func(m *Message) *int { return &m.Accuracy }),
		coord(79, 28, 600000, 180, func(m *Message) *float64 { return &m.Lon }),
		coord(107, 27, 600000, 90, func(m *Message) *float64 { return &m.Lat }),
		unum(134, 4, func(m *Message) *int { return &m.EPFD }),
	}}

	aidToNavigation = layout{bits: 272, fields: join([]field{
		unum(38, 5, func(m *Message) *int { return &m.AidType }),
		txt(43, 120, func(m *Message) *string { return &m.ShipName }),
		unum(163, 1, func(m *Message) *int { return &m.Accuracy }),
		coord(164, 28, 600000, 180, func(m *Message) *float64 { return &m.Lon }),
		coord(192, 27, 600000, 90, func(m *Message) *float64 { return &m.Lat }),
	}, dims(219, 228, 237, 243), []field{
		unum(249, 4, func(m *Message) *int { return &m.EPFD }),
		unum(253, 6, func(m *Message) *int { return &m.Second }),
		vtxt(272, func(m *Message) *string { return &m.Text }),
	})}

	applicationID = []field{
		unum(40, 10, func(m *Message) *int { return &m.DAC }),
		unum(50, 6, func(m *Message) *int { return &m.FID }),
	}

	binaryBroadcast = layout{bits: 56, fields: applicationID}

	inlandStatic = layout{bits: 168, fields: join(applicationID, []field{
		txt(56, 48, func(m *Message) *string { return &m.Inland.ENI }),
		ureal(104, 13, 10, func(m *Message) *float64 { return &m.Inland.Length }),
		ureal(117, 10, 10, func(m *Message) *float64 { return &m.Inland.Beam }),
		unum(127, 14, func(m *Message) *int { return &m.Inland.ShipType }),
		unum(141, 3, func(m *Message) *int { return &m.Inland.Hazard }),
		ureal(144, 11, 100, func(m *Message) *float64 { return &m.Inland.Draught }),
		unum(155, 2, func(m *Message) *int { return &m.Inland.Loaded }),
		unum(157, 1, func(m *Message) *int { return &m.Inland.SpeedQuality }),
		unum(158, 1, func(m *Message) *int { return &m.Inland.CourseQuality }),
		unum(159, 1, func(m *Message) *int { return &m.Inland.HeadingQuality }),
	})}

	meteoHydro = layout{bits: 360, fields: join(applicationID, []field{
		coord(56, 25, 60000, 180, func(m *Message) *float64 { return &m.Weather.Lon }),
		coord(81, 24, 60000, 90, func(m *Message) *float64 { return &m.Weather.Lat }),
		unum(105, 1, func(m *Message) *int { return &m.Weather.Accuracy }),
		unum(106, 5, func(m *Message) *int { return &m.Weather.Day }),
		unum(111, 5, func(m *Message) *int { return &m.Weather.Hour }),
		unum(116, 6, func(m *Message) *int { return &m.Weather.Minute }),
		unum(122, 7, func(m *Message) *int { return &m.Weather.WindSpeed }),
		unum(129, 7, func(m *Message) *int { return &m.Weather.WindGust }),
		unum(136, 9, func(m *Message) *int { return &m.Weather.WindDir }),
		unum(145, 9, func(m *Message) *int { return &m.Weather.WindGustDir }),
		sreal(154, 11, 10, func(m *Message) *float64 { return &m.Weather.AirTemp }),
		unum(165, 7, func(m *Message) *int { return &m.Weather.Humidity }),
		sreal(172, 10, 10, func(m *Message) *float64 { return &m.Weather.DewPoint }),
		unum(182, 9, func(m *Message) *int { return &m.Weather.Pressure }),
		unum(191, 2, func(m *Message) *int { return &m.Weather.PressureTrend }),
		unum(193, 1, func(m *Message) *int { return &m.Weather.VisGreater }),
		ureal(194, 8, 10, func(m *Message) *float64 { return &m.Weather.Visibility }),
		sreal(202, 12, 100, func(m *Message) *float64 { return &m.Weather.WaterLevel }),
		unum(214, 2, func(m *Message) *int { return &m.Weather.LevelTrend }),
		ureal(216, 8, 10, func(m *Message) *float64 { return &m.Weather.CurrentSpeed }),
		unum(224, 9, func(m *Message) *int { return &m.Weather.CurrentDir }),
		ureal(277, 8, 10, func(m *Message) *float64 { return &m.Weather.WaveHeight }),
		unum(285, 6, func(m *Message) *int { return &m.Weather.WavePeriod }),
		unum(291, 9, func(m *Message) *int { return &m.Weather.WaveDir }),
		ureal(300, 8, 10, func(m *Message) *float64 { return &m.Weather.SwellHeight }),
		unum(308, 6, func(m *Message) *int { return &m.Weather.SwellPeriod }),
		unum(314, 9, func(m *Message) *int { return &m.Weather.SwellDir }),
		unum(323, 4, func(m *Message) *int { return &m.Weather.SeaState }),
		sreal(327, 10, 10, func(m *Message) *float64 { return &m.Weather.WaterTemp }),
		unum(337, 3, func(m *Message) *int { return &m.Weather.PrecipType }),
		ureal(340, 9, 10, func(m *Message) *float64 { return &m.Weather.Salinity }),
		unum(349, 2, func(m *Message) *int { return &m.Weather.Ice }),
	})}

	singleSlotFlags = []field{
		unum(38, 1, func(m *Message) *int { return &m.Addressed }),
		unum(39, 1, func(m *Message) *int { return &m.Structured }),
	}

	destination = unum(40, 30, func(m *Message) *int { return &m.DestMMSI })

	singleSlotBroadcast = layout{bits: 40, fields: singleSlotFlags}

	singleSlotBroadcastApp = layout{bits: 56, fields: join(singleSlotFlags, applicationID)}

	singleSlotAddressed = layout{bits: 70, fields: join(singleSlotFlags, []field{destination})}

	singleSlotAddressedApp = layout{bits: 86, fields: join(singleSlotFlags, []field{
		destination,
		unum(70, 10, func(m *Message) *int { return &m.DAC }),
		unum(80, 6, func(m *Message) *int { return &m.FID }),
	})}

	longRange = layout{bits: 96, fields: []field{
		unum(38, 1, func(m *Message) *int { return &m.Accuracy }),
		unum(40, 4, func(m *Message) *int { return &m.NavStatus }),
		coord(44, 18, 600, 180, func(m *Message) *float64 { return &m.Lon }),
		coord(62, 17, 600, 90, func(m *Message) *float64 { return &m.Lat }),
		ureal(79, 6, 1, func(m *Message) *float64 { return &m.SOG }),
		ureal(85, 9, 1, func(m *Message) *float64 { return &m.COG }),
	}}
)

// layoutFor selects the field table of m. Discriminating members (PartNo,
// DAC/FID, Addressed/Structured) must already be set.
func layoutFor(m *Message) *layout {
	switch m.Type {
	case 1, 2, 3:
		return &positionA
	case 4, 11:
		return &baseStation
	case 5:
		return &staticVoyage
	case 8:
		switch {
		case m.DAC == 200 && m.FID == 10:
			return &inlandStatic
		case m.DAC == 1 && m.FID == 31:
			return &meteoHydro
		}
		return &binaryBroadcast
	case 18:
		return &positionB
	case 19:
		return &extendedB
	case 21:
		return &aidToNavigation
	case 24:
		switch {
		case m.PartNo == 0:
			return &staticB0
		case m.PartNo == 1 && strings.HasPrefix(m.MMSI, "98"):
			return &staticB1Auxiliary
		case m.PartNo == 1:
			return &staticB1
		}
	case 25:
		switch {
		case m.Addressed == 1 && m.Structured == 1:
			return &singleSlotAddressedApp
		case m.Addressed == 1:
			return &singleSlotAddressed
		case m.Structured == 1:
			return &singleSlotBroadcastApp
		}
		return &singleSlotBroadcast
	case 27:
		return &longRange
	}
	return nil
}

// readDiscriminators loads the members layoutFor needs from the payload.
func readDiscriminators(p Payload, m *Message) {
	switch m.Type {
	case 8:
		m.DAC = int(p.GetInt(40, 10, false))
		m.FID = int(p.GetInt(50, 6, false))
	case 24:
		m.PartNo = int(p.GetInt(38, 2, false))
	case 25:
		m.Addressed = int(p.GetInt(38, 1, false))
		m.Structured = int(p.GetInt(39, 1, false))
	}
}

// extent is the number of payload bits the fixed-width fields need.
func (l *layout) extent() int {
	n := 0
	for _, f := range l.fields {
		if end := f.start + f.width; end > n {
			n = end
		}
	}
	return n
}

// extract runs every field of the table against p. It reports false when a
// bounded value falls outside its range.
func (l *layout) extract(p Payload, m *Message) bool {
	ok := true
	for _, f := range l.fields {
		switch {
		case f.str != nil:
			width := f.width
			if f.kind == varText {
				width = p.Bits() - f.start
			}
			*f.str(m) = p.GetStr(f.start, width)
		case f.real != nil:
			v := float64(p.GetInt(f.start, f.width, f.kind == signed)) / f.div
			*f.real(m) = v
			if f.bound > 0 && math.Abs(v) > f.bound {
				ok = false
			}
		case f.num != nil:
			*f.num(m) = int(p.GetInt(f.start, f.width, f.kind == signed))
		}
	}
	return ok
}

// bitsFor is the encoded length of m, including any variable text.
func (l *layout) bitsFor(m *Message) int {
	n := l.bits
	for _, f := range l.fields {
		if f.kind == varText {
			n += 6 * len(*f.str(m))
		}
	}
	return n
}

func (l *layout) insert(p Payload, m *Message) {
	for _, f := range l.fields {
		switch {
		case f.str != nil:
			width := f.width
			if f.kind == varText {
				width = 6 * len(*f.str(m))
			}
			p.PutStr(f.start, width, *f.str(m))
		case f.real != nil:
			p.PutInt(f.start, f.width, int64(math.Round(*f.real(m)*f.div)))
		case f.num != nil:
			p.PutInt(f.start, f.width, int64(*f.num(m)))
		}
	}
}
