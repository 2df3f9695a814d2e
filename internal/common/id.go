package common

import (
	"github.com/google/uuid"
)

// NewBatchID generates a unique batch ID with the "batch_" prefix
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewAlertID generates a unique drift alert ID with the "alert_" prefix
func NewAlertID() string {
	return "alert_" + uuid.New().String()
}
