package model

import (
	"time"
	"trackgate/internal/core/util"
)

// Event kinds stored next to positions.
const (
	EventLogin  = "login"
	EventLogout = "logout"
	EventAlarm  = "alarm"
	EventObd    = "obd"
)

// Event is a non-position occurrence reported by or about a device.
type Event struct {
	ID        string                 `json:"id"`
	DeviceID  string                 `json:"deviceId"`
	Kind      string                 `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(deviceID, kind string, data map[string]interface{}) *Event {
	return &Event{
		ID:        util.GenerateID(),
		DeviceID:  deviceID,
		Kind:      kind,
		Timestamp: time.Now(),
		Data:      data,
	}
}
