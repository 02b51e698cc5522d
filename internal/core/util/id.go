package util

import (
	"github.com/google/uuid"
)

// GenerateID returns a random unique identifier for positions, events and jobs.
func GenerateID() string {
	return uuid.NewString()
}
