package drift

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/embeddings"
)

// shiftDetails is the Details payload of a market_shift alert.
type shiftDetails struct {
	GainedTerms []string `json:"gained_terms,omitempty"`
	LostTerms   []string `json:"lost_terms,omitempty"`
	JDCount     int      `json:"jd_count"`
	Window      string   `json:"window"`
}

// staleDetails is the Details payload of a resume_stale alert.
type staleDetails struct {
	Alignment     float64 `json:"alignment"`
	ResumeVersion string  `json:"resume_version"`
	LastRewritten string  `json:"last_rewritten,omitempty"`
}

// CheckMarketShift raises a market_shift alert for each newly computed
// centroid whose movement strictly exceeds the threshold. A shift
// exactly at the threshold does not fire.
func (e *Engine) CheckMarketShift(ctx context.Context, created map[models.Archetype]*models.MarketCentroid) ([]*models.DriftAlert, error) {
	var alerts []*models.DriftAlert
	for _, archetype := range models.AllArchetypes {
		centroid, ok := created[archetype]
		if !ok || centroid.ShiftFromPrevious <= e.config.ShiftThreshold {
			continue
		}

		details, err := json.Marshal(shiftDetails{
			GainedTerms: capTerms(centroid.TopGainedTerms, 10),
			LostTerms:   capTerms(centroid.TopLostTerms, 10),
			JDCount:     centroid.JDCount,
			Window:      fmt.Sprintf("%s to %s", centroid.WindowStart.Format("2006-01-02"), centroid.WindowEnd.Format("2006-01-02")),
		})
		if err != nil {
			return alerts, err
		}

		alert := &models.DriftAlert{
			Archetype:      archetype,
			Type:           models.AlertMarketShift,
			MetricValue:    centroid.ShiftFromPrevious,
			ThresholdValue: e.config.ShiftThreshold,
			Details:        string(details),
		}
		if err := e.storage.Alerts().SaveAlert(ctx, alert); err != nil {
			return alerts, err
		}
		alerts = append(alerts, alert)

		e.logger.Warn().
			Str("archetype", string(archetype)).
			Float64("shift", centroid.ShiftFromPrevious).
			Float64("threshold", e.config.ShiftThreshold).
			Msg("Market shift alert raised")
	}
	return alerts, nil
}

// CheckStaleness raises a resume_stale alert for each variant whose
// distance from its latest centroid strictly exceeds the threshold.
func (e *Engine) CheckStaleness(ctx context.Context) ([]*models.DriftAlert, error) {
	variants, err := e.storage.Variants().ListVariants(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []*models.DriftAlert
	for _, variant := range variants {
		centroid, err := e.storage.Centroids().LatestCentroid(ctx, variant.Archetype)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return alerts, err
		}
		if len(variant.Embedding) == 0 {
			continue
		}

		distance := embeddings.CosineDistance(variant.Embedding, centroid.Centroid)
		if distance <= e.config.StalenessThreshold {
			continue
		}

		lastRewritten := ""
		if variant.LastRewritten != nil {
			lastRewritten = variant.LastRewritten.Format(time.RFC3339)
		}
		details, err := json.Marshal(staleDetails{
			Alignment:     1.0 - distance,
			ResumeVersion: variant.CurrentVersion,
			LastRewritten: lastRewritten,
		})
		if err != nil {
			return alerts, err
		}

		alert := &models.DriftAlert{
			Archetype:      variant.Archetype,
			Type:           models.AlertResumeStale,
			MetricValue:    distance,
			ThresholdValue: e.config.StalenessThreshold,
			Details:        string(details),
		}
		if err := e.storage.Alerts().SaveAlert(ctx, alert); err != nil {
			return alerts, err
		}
		alerts = append(alerts, alert)

		e.logger.Warn().
			Str("archetype", string(variant.Archetype)).
			Float64("staleness", distance).
			Msg("Resume staleness alert raised")
	}
	return alerts, nil
}

// CheckRewriteTriggers fires a rewrite_triggered alert per archetype
// when the latest market_shift and resume_stale alerts are both still
// unacknowledged and the variant's last rewrite cleared the cooldown.
// Firing acknowledges the two component alerts.
func (e *Engine) CheckRewriteTriggers(ctx context.Context, now time.Time) ([]*models.DriftAlert, error) {
	var triggered []*models.DriftAlert
	for _, archetype := range models.AllArchetypes {
		variant, err := e.storage.Variants().GetVariant(ctx, archetype)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return triggered, err
		}

		if variant.LastRewritten != nil {
			daysSince := int(now.Sub(*variant.LastRewritten).Hours() / 24)
			if daysSince < e.config.RewriteCooldownDays {
				continue
			}
		}

		marketAlert, err := e.storage.Alerts().LatestUnacknowledged(ctx, archetype, models.AlertMarketShift)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return triggered, err
		}
		staleAlert, err := e.storage.Alerts().LatestUnacknowledged(ctx, archetype, models.AlertResumeStale)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return triggered, err
		}

		report := e.buildRewriteReport(archetype, variant, marketAlert, staleAlert)
		details, err := json.Marshal(report)
		if err != nil {
			return triggered, err
		}

		alert := &models.DriftAlert{
			Archetype:      archetype,
			Type:           models.AlertRewriteTriggered,
			MetricValue:    staleAlert.MetricValue,
			ThresholdValue: staleAlert.ThresholdValue,
			Details:        string(details),
		}
		if err := e.storage.Alerts().SaveAlert(ctx, alert); err != nil {
			return triggered, err
		}

		if err := e.storage.Alerts().Acknowledge(ctx, marketAlert.ID); err != nil {
			return triggered, err
		}
		if err := e.storage.Alerts().Acknowledge(ctx, staleAlert.ID); err != nil {
			return triggered, err
		}

		triggered = append(triggered, alert)
		e.logger.Warn().
			Str("archetype", string(archetype)).
			Float64("shift", marketAlert.MetricValue).
			Float64("staleness", staleAlert.MetricValue).
			Msg("Rewrite triggered")
	}
	return triggered, nil
}

func (e *Engine) buildRewriteReport(archetype models.Archetype, variant *models.ResumeVariant, marketAlert, staleAlert *models.DriftAlert) *models.RewriteReport {
	var details shiftDetails
	// Component alert details are best-effort context; a decode failure
	// leaves the term lists empty.
	_ = json.Unmarshal([]byte(marketAlert.Details), &details)

	return &models.RewriteReport{
		Archetype:     archetype,
		ShiftDistance: marketAlert.MetricValue,
		Staleness:     staleAlert.MetricValue,
		ResumeVersion: variant.CurrentVersion,
		GainedTerms:   details.GainedTerms,
		LostTerms:     details.LostTerms,
		SuggestedFocus: fmt.Sprintf("Market for %s roles is shifting towards: %s. Consider de-emphasising: %s.",
			archetype,
			strings.Join(capTerms(details.GainedTerms, 5), ", "),
			strings.Join(capTerms(details.LostTerms, 5), ", ")),
	}
}

// Run executes the weekly pipeline: centroids, alignment refresh, shift
// and staleness alerts, then the rewrite gate.
func (e *Engine) Run(ctx context.Context, now time.Time) error {
	created, err := e.ComputeCentroids(ctx, now)
	if err != nil {
		return err
	}
	if err := e.RefreshAlignments(ctx); err != nil {
		return err
	}
	if _, err := e.CheckMarketShift(ctx, created); err != nil {
		return err
	}
	if _, err := e.CheckStaleness(ctx); err != nil {
		return err
	}
	if _, err := e.CheckRewriteTriggers(ctx, now); err != nil {
		return err
	}
	return nil
}

func capTerms(terms []string, n int) []string {
	if len(terms) > n {
		return terms[:n]
	}
	return terms
}
