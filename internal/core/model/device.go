package model

import (
	"strings"
	"time"
	"trackgate/internal/core/util"
)

// Device states kept in the device repository.
const (
	DeviceActive   = "active"
	DeviceInactive = "inactive"
)

type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UniqueID   string    `json:"uniqueId"` // MMSI, IMEI or app id
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"lastUpdate"`
	PositionID string    `json:"positionId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Protocol   string    `json:"protocol"`
	Static     *Static   `json:"static,omitempty"`
}

func NewDevice(name, uniqueID, protocol string) *Device {
	return &Device{
		ID:         util.GenerateID(),
		Name:       name,
		UniqueID:   uniqueID,
		Status:     DeviceInactive,
		LastUpdate: time.Now(),
		CreatedAt:  time.Now(),
		Protocol:   protocol,
	}
}

// IsTestDevice checks if this is a test device
func (d *Device) IsTestDevice() bool {
	return strings.HasPrefix(d.UniqueID, "test-") || strings.HasPrefix(d.UniqueID, "demo-")
}
