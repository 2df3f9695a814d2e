package outcomes

import (
	"strings"

	"github.com/wmarzella/ronin/internal/models"
)

// outcomeRules maps each classifiable stage to its keyword list. Matching
// is case-insensitive substring over the message body; confidence is the
// fraction of the stage's keywords that hit.
var outcomeRules = map[models.OutcomeStage][]string{
	models.OutcomeRejected: {
		"unfortunately",
		"other candidates",
		"not progressing",
		"position has been filled",
		"we will not be",
		"unsuccessful",
		"decided not to proceed",
		"not shortlisted",
		"gone with another",
	},
	models.OutcomeInterview: {
		"availability",
		"phone screen",
		"would like to discuss",
		"schedule",
		"interview",
		"meet with",
		"arrange a time",
		"chat about the role",
		"initial conversation",
		"when are you free",
	},
	models.OutcomeViewed: {
		"your application was viewed",
		"has viewed your application",
		"viewed your profile",
	},
	models.OutcomeAcknowledged: {
		"application received",
		"thank you for applying",
		"we have received",
		"application submitted",
	},
}

// classificationPriority orders the stages checked by ClassifyOutcome.
// An interview request outranks a rejection in the same message, which
// happens with "unfortunately the original role... but we would like to
// discuss" follow-ups.
var classificationPriority = []models.OutcomeStage{
	models.OutcomeInterview,
	models.OutcomeRejected,
	models.OutcomeViewed,
	models.OutcomeAcknowledged,
}

// ClassifyOutcome scans the body for stage keywords and returns the
// highest-priority stage that hit, with confidence = hits / keywords.
// Returns ("", 0) when nothing matches.
func ClassifyOutcome(body string) (models.OutcomeStage, float64) {
	bodyLower := strings.ToLower(body)

	var best models.OutcomeStage
	bestPriority := -1
	bestConfidence := 0.0

	for _, stage := range classificationPriority {
		keywords := outcomeRules[stage]
		hits := 0
		for _, keyword := range keywords {
			if strings.Contains(bodyLower, keyword) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		if stage.Priority() > bestPriority {
			best = stage
			bestPriority = stage.Priority()
			bestConfidence = float64(hits) / float64(len(keywords))
		}
	}

	return best, bestConfidence
}
