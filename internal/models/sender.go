package models

import (
	"time"
)

// KnownSender is a learned mapping from a sender address to the hiring
// entity it speaks for. Confirmed matches grow this table so later
// messages from the same address match directly. Address is unique.
type KnownSender struct {
	ID         int64       `json:"id"`
	Address    string      `json:"address"`
	Entity     string      `json:"entity"` // Company or agency the address represents
	Class      SenderClass `json:"class"`
	FirstSeen  time.Time   `json:"first_seen"`
	LastSeen   time.Time   `json:"last_seen"`
	MatchCount int         `json:"match_count"`
}
