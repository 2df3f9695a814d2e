package outcomes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wmarzella/ronin/internal/models"
)

func TestClassifyOutcomeRejection(t *testing.T) {
	stage, confidence := ClassifyOutcome("Unfortunately we have decided to progress with other candidates.")
	assert.Equal(t, models.OutcomeRejected, stage)
	assert.InDelta(t, 2.0/9.0, confidence, 1e-9)
}

func TestClassifyOutcomeInterview(t *testing.T) {
	stage, _ := ClassifyOutcome("We would like to discuss your application. Please schedule a time that suits.")
	assert.Equal(t, models.OutcomeInterview, stage)
}

func TestClassifyOutcomeInterviewOutranksRejection(t *testing.T) {
	// "Unfortunately that role closed, but we would like to discuss
	// another" carries both signals; interview wins on priority.
	stage, _ := ClassifyOutcome("Unfortunately that role has been filled, but we would like to discuss a similar opening. What is your availability?")
	assert.Equal(t, models.OutcomeInterview, stage)
}

func TestClassifyOutcomeViewed(t *testing.T) {
	stage, confidence := ClassifyOutcome("Good news: the employer has viewed your application.")
	assert.Equal(t, models.OutcomeViewed, stage)
	assert.InDelta(t, 1.0/3.0, confidence, 1e-9)
}

func TestClassifyOutcomeAcknowledged(t *testing.T) {
	stage, _ := ClassifyOutcome("Thank you for applying. We have received your application.")
	assert.Equal(t, models.OutcomeAcknowledged, stage)
}

func TestClassifyOutcomeNoSignal(t *testing.T) {
	stage, confidence := ClassifyOutcome("Weekly newsletter: top data roles this week")
	assert.Empty(t, string(stage))
	assert.Zero(t, confidence)
}

func TestClassifyOutcomeCaseInsensitive(t *testing.T) {
	stage, _ := ClassifyOutcome("UNFORTUNATELY your application was NOT SHORTLISTED")
	assert.Equal(t, models.OutcomeRejected, stage)
}
