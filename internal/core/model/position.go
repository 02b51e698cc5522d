package model

import (
	"math"
	"time"
	"trackgate/internal/core/util"
)

type Position struct {
	ID         string                 `json:"id"`
	DeviceID   string                 `json:"deviceId"`
	Timestamp  time.Time              `json:"timestamp"`
	Latitude   float64                `json:"latitude"`
	Longitude  float64                `json:"longitude"`
	Altitude   float64                `json:"altitude"`
	Speed      float64                `json:"speed"` // m/s
	Course     float64                `json:"course"`
	Heading    int                    `json:"heading"`
	NavStatus  int                    `json:"navStatus"`
	Type       int                    `json:"type,omitempty"` // AIS message type, 0 for trackers
	Protocol   string                 `json:"protocol"`
	Valid      bool                   `json:"valid"`
	Satellites uint8                  `json:"satellites"`
	Status     map[string]interface{} `json:"status,omitempty"` // Additional status information
}

func NewPosition(deviceID string, lat, lon float64) *Position {
	return &Position{
		ID:        util.GenerateID(),
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Latitude:  lat,
		Longitude: lon,
		Protocol:  "unknown",
		Valid:     true,
		Status:    make(map[string]interface{}),
	}
}

// InRange reports whether the coordinates are on the globe.
func (p *Position) InRange() bool {
	return !math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude) &&
		p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
