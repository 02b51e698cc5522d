package session

import (
	"math"
	"time"

	"trackgate/internal/core/model"
)

const earthRadius = 6371000.0 // meters

// Filter holds the thresholds deciding whether a new fix is worth storing.
// Zero values disable the corresponding check.
type Filter struct {
	MinDist   float64       `yaml:"min_dist"`  // meters
	MaxTime   time.Duration `yaml:"max_time"`  // a fix is stored at least this often
	MaxSpeed  float64       `yaml:"max_speed"` // m/s
	MaxErrors int           `yaml:"max_errors"`
}

// Reasons a fix is ignored.
const (
	ReasonStationary = "stationary"
	ReasonSpeed      = "speed"
	ReasonStale      = "stale"
)

// Check compares next to the last accepted fix. errorCount is the running
// count of implausible-speed fixes; it is incremented here and must be reset
// by the caller when a fix is accepted. An empty reason means accept.
func (f Filter) Check(last, next *model.Position, errorCount *int) string {
	if last == nil {
		return ""
	}

	elapsed := next.Timestamp.Sub(last.Timestamp)
	if elapsed < 0 {
		return ReasonStale
	}
	dist := Haversine(last.Latitude, last.Longitude, next.Latitude, next.Longitude)

	if dist < f.MinDist && elapsed < f.MaxTime {
		return ReasonStationary
	}

	if f.MaxSpeed > 0 {
		speed := math.Inf(1)
		if elapsed > 0 {
			speed = dist / elapsed.Seconds()
		} else if dist == 0 {
			speed = 0
		}
		if speed > f.MaxSpeed {
			*errorCount++
			if *errorCount <= f.MaxErrors {
				return ReasonSpeed
			}
		}
	}
	return ""
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
