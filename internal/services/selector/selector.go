package selector

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// Selection is the variant decision for one classified listing.
type Selection struct {
	Archetype models.Archetype
	// TopScore is the winning archetype's normalised score.
	TopScore float64
	// Alignment is the chosen variant's alignment against the latest
	// market centroid, 1.0 when no alignment has been computed yet.
	Alignment float64
	// Combined is TopScore times Alignment, the fit estimate used for
	// the intelligence-only gate.
	Combined float64
	// NeedsReview marks a close call between the top two archetypes.
	NeedsReview bool
	// IntelligenceOnly routes the listing to market tracking without
	// submitting an application.
	IntelligenceOnly bool
	Variant          *models.ResumeVariant

	// Rationale is the JSON decision record stored with the application
	// on emission.
	Rationale string
}

// rationale is the persisted shape of a selection decision.
type rationale struct {
	Scores         map[models.Archetype]float64 `json:"scores"`
	TopScore       float64                      `json:"top_score"`
	Alignment      float64                      `json:"alignment"`
	Combined       float64                      `json:"combined"`
	CombinedFloor  float64                      `json:"combined_floor"`
	CloseCallDelta float64                      `json:"close_call_delta"`
	NeedsReview    bool                         `json:"needs_review"`
}

// Selector picks the resume variant for a classified listing and flags
// weak or ambiguous fits.
type Selector struct {
	storage       interfaces.StorageManager
	closeCall     float64
	combinedFloor float64
	logger        arbor.ILogger
}

func New(storage interfaces.StorageManager, config *common.SelectorConfig, logger arbor.ILogger) *Selector {
	return &Selector{
		storage:       storage,
		closeCall:     config.CloseCallDelta,
		combinedFloor: config.CombinedScoreThreshold,
		logger:        logger,
	}
}

// Select resolves the variant decision for a classified listing. The
// close-call flag fires only when the margin is strictly below the
// delta; a margin exactly at the delta is decisive.
func (s *Selector) Select(ctx context.Context, listing *models.Listing) (*Selection, error) {
	if !listing.Classified || len(listing.ArchetypeScores) == 0 {
		return nil, common.ValidationError("listing", "is not classified")
	}

	top, second := topTwo(listing.ArchetypeScores)
	sel := &Selection{
		Archetype:   top,
		TopScore:    listing.ArchetypeScores[top],
		Alignment:   1.0,
		NeedsReview: listing.ArchetypeScores[top]-listing.ArchetypeScores[second] < s.closeCall,
	}

	variant, err := s.storage.Variants().GetVariant(ctx, top)
	switch {
	case err == nil:
		sel.Variant = variant
		if variant.AlignmentScore > 0 {
			sel.Alignment = variant.AlignmentScore
		}
	case common.IsNotFound(err):
		// No variant on file yet: fit collapses to the raw score.
	default:
		return nil, err
	}

	sel.Combined = sel.TopScore * sel.Alignment
	sel.IntelligenceOnly = sel.Combined < s.combinedFloor

	if encoded, err := json.Marshal(rationale{
		Scores:         listing.ArchetypeScores,
		TopScore:       sel.TopScore,
		Alignment:      sel.Alignment,
		Combined:       sel.Combined,
		CombinedFloor:  s.combinedFloor,
		CloseCallDelta: s.closeCall,
		NeedsReview:    sel.NeedsReview,
	}); err == nil {
		sel.Rationale = string(encoded)
	}

	// A weak fit is persisted on the listing so the queue never offers
	// it again; market tracking still sees it through the drift window.
	if sel.IntelligenceOnly && listing.ID != 0 && !listing.IntelligenceOnly {
		if err := s.storage.Listings().MarkIntelligenceOnly(ctx, listing.ID); err != nil {
			return nil, err
		}
		listing.IntelligenceOnly = true
	}

	s.logger.Debug().
		Int64("listing_id", listing.ID).
		Str("archetype", string(top)).
		Float64("combined", sel.Combined).
		Bool("needs_review", sel.NeedsReview).
		Bool("intelligence_only", sel.IntelligenceOnly).
		Msg("Variant selected")
	return sel, nil
}

// topTwo returns the best and runner-up archetypes, ties broken by the
// fixed archetype order.
func topTwo(scores map[models.Archetype]float64) (models.Archetype, models.Archetype) {
	top := models.PrimaryArchetype(scores)
	second := models.Archetype("")
	secondScore := -1.0
	for _, a := range models.AllArchetypes {
		if a == top {
			continue
		}
		if scores[a] > secondScore {
			second = a
			secondScore = scores[a]
		}
	}
	return top, second
}
