package model

import "time"

// Static is the identity and voyage data of a vessel. Class B transponders
// send it in two halves which are folded together with Merge.
type Static struct {
	DeviceID    string    `json:"deviceId"`
	ShipName    string    `json:"shipName,omitempty"`
	CallSign    string    `json:"callSign,omitempty"`
	IMO         int       `json:"imo,omitempty"`
	Cargo       int       `json:"cargo,omitempty"`
	DimA        int       `json:"dimA,omitempty"`
	DimB        int       `json:"dimB,omitempty"`
	DimC        int       `json:"dimC,omitempty"`
	DimD        int       `json:"dimD,omitempty"`
	Draught     float64   `json:"draught,omitempty"`
	ETA         string    `json:"eta,omitempty"` // MM-DD hh:mm, UTC
	Destination string    `json:"destination,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Merge copies the non-empty fields of other into s. Records for another
// device are ignored.
func (s *Static) Merge(other *Static) {
	if other == nil || (s.DeviceID != "" && other.DeviceID != s.DeviceID) {
		return
	}
	s.DeviceID = other.DeviceID
	if other.ShipName != "" {
		s.ShipName = other.ShipName
	}
	if other.CallSign != "" {
		s.CallSign = other.CallSign
	}
	if other.IMO != 0 {
		s.IMO = other.IMO
	}
	if other.Cargo != 0 {
		s.Cargo = other.Cargo
	}
	if other.DimA != 0 || other.DimB != 0 || other.DimC != 0 || other.DimD != 0 {
		s.DimA, s.DimB, s.DimC, s.DimD = other.DimA, other.DimB, other.DimC, other.DimD
	}
	if other.Draught != 0 {
		s.Draught = other.Draught
	}
	if other.ETA != "" {
		s.ETA = other.ETA
	}
	if other.Destination != "" {
		s.Destination = other.Destination
	}
	if other.UpdatedAt.After(s.UpdatedAt) {
		s.UpdatedAt = other.UpdatedAt
	}
}
