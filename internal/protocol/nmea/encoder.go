package nmea

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Encode renders fix as a $GPRMC sentence, the inverse of decoding one.
func Encode(fix *Fix) string {
	ts := fix.Timestamp.UTC()
	if fix.Timestamp.IsZero() {
		ts = now().UTC()
	}
	status := "A"
	if !fix.Valid {
		status = "V"
	}

	lat, ns := formatCoordinate(fix.Latitude, 2, "N", "S")
	lon, ew := formatCoordinate(fix.Longitude, 3, "E", "W")
	body := fmt.Sprintf("GPRMC,%s.%02d,%s,%s,%s,%s,%s,%.1f,%.1f,%s,,",
		ts.Format("150405"), ts.Nanosecond()/int(10*time.Millisecond), status,
		lat, ns, lon, ew,
		fix.Speed/knotsToMs, fix.Course,
		ts.Format("020106"))
	return "$" + body + "*" + Checksum(body)
}

// EncodeCommand renders a proprietary $FAKCMD line carrying a command for a
// device speaking this protocol.
func EncodeCommand(command string, args ...string) string {
	body := strings.Join(append([]string{"FAKCMD", command}, args...), ",")
	return "$" + body + "*" + Checksum(body)
}

// EncodeLogin renders the $FAKID line that identifies a device.
func EncodeLogin(devID, name string) string {
	body := "FAKID," + devID
	if name != "" {
		body += "," + name
	}
	return "$" + body + "*" + Checksum(body)
}

func formatCoordinate(v float64, degWidth int, pos, neg string) (string, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	minutes := math.Round((v-deg)*60*10000) / 10000
	if minutes >= 60 {
		deg++
		minutes -= 60
	}
	return fmt.Sprintf("%0*d%07.4f", degWidth, int(deg), minutes), hemi
}
