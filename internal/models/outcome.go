package models

// OutcomeStage is the funnel position of an application. Stages only move
// forward: an update is applied only when the new stage has strictly
// higher priority than the current one.
type OutcomeStage string

const (
	OutcomeGhost        OutcomeStage = "ghost" // No signal after the ghost window
	OutcomeSubmitted    OutcomeStage = "submitted"
	OutcomeAcknowledged OutcomeStage = "acknowledged"
	OutcomeViewed       OutcomeStage = "viewed"
	OutcomeRejected     OutcomeStage = "rejected"
	OutcomeInterview    OutcomeStage = "interview_request"
	OutcomeOffer        OutcomeStage = "offer"
)

var outcomePriority = map[OutcomeStage]int{
	OutcomeGhost:        0,
	OutcomeSubmitted:    1,
	OutcomeAcknowledged: 2,
	OutcomeViewed:       3,
	OutcomeRejected:     4,
	OutcomeInterview:    5,
	OutcomeOffer:        6,
}

// Priority returns the funnel ordering of the stage. Unknown stages rank
// below everything so they never displace a recorded outcome.
func (s OutcomeStage) Priority() int {
	if p, ok := outcomePriority[s]; ok {
		return p
	}
	return -1
}

// Supersedes reports whether s should replace current.
func (s OutcomeStage) Supersedes(current OutcomeStage) bool {
	return s.Priority() > current.Priority()
}

// Valid reports whether s is a known stage.
func (s OutcomeStage) Valid() bool {
	_, ok := outcomePriority[s]
	return ok
}
