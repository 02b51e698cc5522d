// Package gt06 implements the GT06 binary protocol of Concox-style GPS
// trackers.
package gt06

import "errors"

// Protocol constants
const (
	startByte    = 0x78
	startByteExt = 0x79 // two-byte length variant
	endByte1     = 0x0D
	endByte2     = 0x0A

	// Message types
	LoginMsg    = 0x01
	LocationMsg = 0x12
	StatusMsg   = 0x13
	StringMsg   = 0x15 // command reply
	AlarmMsg    = 0x16
	CommandMsg  = 0x80

	// Alarm types
	sosAlarm        = 0x01
	powerCutAlarm   = 0x02
	vibrationAlarm  = 0x03
	fenceInAlarm    = 0x04
	fenceOutAlarm   = 0x05
	lowBatteryAlarm = 0x06
	overspeedAlarm  = 0x07
)

// Content sizes
const (
	loginSize  = 8      // BCD IMEI
	gpsSize    = 6 + 12 // date + gps info, lat, lon, speed, course/status
	lbsSize    = 8      // MCC, MNC, LAC, cell id
	statusSize = 5      // terminal info, voltage, gsm signal, language
)

var (
	ErrInvalidHeader      = errors.New("invalid GT06 protocol header")
	ErrPacketTooShort     = errors.New("data too short for GT06 protocol")
	ErrInvalidChecksum    = errors.New("invalid checksum")
	ErrInvalidTimestamp   = errors.New("invalid timestamp values")
	ErrInvalidMessageType = errors.New("unsupported message type")
	ErrMalformedPacket    = errors.New("malformed packet structure")
)
