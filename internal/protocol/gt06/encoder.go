package gt06

import (
	"encoding/binary"
	"strings"
)

// Checksum is the CRC-ITU (X.25) of GT06 packets, computed from the length
// byte through the serial number.
func Checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

// Frame wraps content into a short-header packet.
func Frame(protocol byte, content []byte, serial uint16) []byte {
	n := 1 + len(content) + 2 + 2
	buf := make([]byte, 0, 2+1+n+2)
	buf = append(buf, startByte, startByte, byte(n), protocol)
	buf = append(buf, content...)
	buf = binary.BigEndian.AppendUint16(buf, serial)
	buf = binary.BigEndian.AppendUint16(buf, Checksum(buf[2:]))
	return append(buf, endByte1, endByte2)
}

// Response acknowledges a login, status or alarm packet.
func Response(protocol byte, serial uint16) []byte {
	return Frame(protocol, nil, serial)
}

// NeedsResponse reports whether the tracker waits for an acknowledgement.
func NeedsResponse(protocol byte) bool {
	return protocol == LoginMsg || protocol == StatusMsg || protocol == AlarmMsg
}

// EncodeCommand renders a queued command as an online command packet.
func EncodeCommand(command string, args []string, serial uint16) []byte {
	var text string
	switch strings.ToUpper(command) {
	case "RESET":
		text = "RESET#"
	case "INTERVAL":
		text = "TIMER," + strings.Join(args, ",") + "#"
	case "ALARM_OFF":
		text = "SOS,D#"
	default:
		text = strings.Join(append([]string{strings.ToUpper(command)}, args...), ",") + "#"
	}

	content := make([]byte, 0, 1+4+len(text))
	content = append(content, byte(4+len(text)), 0, 0, 0, 0) // server flag
	content = append(content, text...)
	return Frame(CommandMsg, content, serial)
}
