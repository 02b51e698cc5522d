package ais

import "errors"

// Common errors
var (
	ErrFieldCount  = errors.New("sentence does not have 7 fields")
	ErrChecksum    = errors.New("invalid checksum")
	ErrFormatter   = errors.New("not a VDM/VDO sentence")
	ErrFormat      = errors.New("malformed sentence")
	ErrArmor       = errors.New("invalid armor character")
	ErrNoSession   = errors.New("multipart sentence without decode session")
	ErrFragment    = errors.New("fragment out of sequence")
	ErrTruncated   = errors.New("payload too short for message type")
	ErrCoordinates = errors.New("coordinates out of range")
	ErrUnsupported = errors.New("message type not supported")
)

// Message is one decoded AIS message. Only the fields of the message type
// are populated; Type and MMSI are always set once the payload is readable.
type Message struct {
	Valid   bool
	Partial bool // waiting for further fragments
	Err     error

	Formatter string // VDM or VDO
	Channel   string

	Type   int
	Repeat int
	MMSI   string

	NavStatus int
	ROT       int
	SOG       float64 // knots
	Accuracy  int
	Lon       float64
	Lat       float64
	COG       float64
	Heading   int
	UTC       int

	AISVersion  int
	IMO         int
	CallSign    string
	ShipName    string
	ShipType    int
	DimA        int
	DimB        int
	DimC        int
	DimD        int
	EPFD        int
	ETAMonth    int
	ETADay      int
	ETAHour     int
	ETAMinute   int
	Draught     float64
	Destination string

	PartNo     int
	VendorID   string
	Mothership int

	AidType int
	Text    string

	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int

	DAC        int
	FID        int
	Addressed  int
	Structured int
	DestMMSI   int

	Inland  InlandStatic
	Weather Weather
}

// InlandStatic is the DAC 200 FID 10 inland ship static and voyage bundle.
type InlandStatic struct {
	ENI            string
	Length         float64
	Beam           float64
	ShipType       int
	Hazard         int
	Draught        float64
	Loaded         int
	SpeedQuality   int
	CourseQuality  int
	HeadingQuality int
}

// Weather is the DAC 1 FID 31 meteorological and hydrographic bundle.
type Weather struct {
	Lon           float64
	Lat           float64
	Accuracy      int
	Day           int
	Hour          int
	Minute        int
	WindSpeed     int
	WindGust      int
	WindDir       int
	WindGustDir   int
	AirTemp       float64
	Humidity      int
	DewPoint      float64
	Pressure      int
	PressureTrend int
	VisGreater    int
	Visibility    float64
	WaterLevel    float64
	LevelTrend    int
	CurrentSpeed  float64
	CurrentDir    int
	WaveHeight    float64
	WavePeriod    int
	WaveDir       int
	SwellHeight   float64
	SwellPeriod   int
	SwellDir      int
	SeaState      int
	WaterTemp     float64
	PrecipType    int
	Salinity      float64
	Ice           int
}

// HasPosition reports whether the message type carries a vessel position.
func (m *Message) HasPosition() bool {
	switch m.Type {
	case 1, 2, 3, 4, 11, 18, 19, 21, 27:
		return true
	}
	return false
}

// HasStatic reports whether the message type carries static vessel data.
func (m *Message) HasStatic() bool {
	switch m.Type {
	case 5, 19, 21, 24:
		return true
	}
	return false
}

func (m *Message) invalid(err error) *Message {
	m.Valid = false
	m.Err = err
	return m
}
