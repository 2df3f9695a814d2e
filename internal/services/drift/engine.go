package drift

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/embeddings"
)

// Engine computes rolling market centroids per archetype and keeps
// resume variants aligned against them.
type Engine struct {
	storage  interfaces.StorageManager
	embedder interfaces.EmbeddingService
	config   *common.DriftConfig
	logger   arbor.ILogger
}

func NewEngine(storage interfaces.StorageManager, embedder interfaces.EmbeddingService, config *common.DriftConfig, logger arbor.ILogger) *Engine {
	return &Engine{
		storage:  storage,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}
}

// ComputeCentroids builds the centroid for the window ending at now for
// every archetype with enough classified listings. Windows that already
// have a centroid are left untouched, which makes the weekly job
// idempotent. Returns the newly created centroids.
func (e *Engine) ComputeCentroids(ctx context.Context, now time.Time) (map[models.Archetype]*models.MarketCentroid, error) {
	windowStart := now.AddDate(0, 0, -e.config.WindowDays)
	created := make(map[models.Archetype]*models.MarketCentroid)

	for _, archetype := range models.AllArchetypes {
		listings, err := e.storage.Listings().ListEmbeddedInWindow(ctx, archetype, windowStart, now)
		if err != nil {
			return created, err
		}

		vectors := make([][]float32, 0, len(listings))
		for _, listing := range listings {
			if listing.EmbeddingModel != e.embedder.ModelName() {
				return created, fmt.Errorf("%w: listing %d embedded with %q, current model is %q, re-embed before computing centroids",
					common.ErrPermanent, listing.ID, listing.EmbeddingModel, e.embedder.ModelName())
			}
			vectors = append(vectors, listing.Embedding)
		}

		if len(vectors) < e.config.MinWindowJDCount {
			e.logger.Debug().
				Str("archetype", string(archetype)).
				Int("jd_count", len(vectors)).
				Int("required", e.config.MinWindowJDCount).
				Msg("Window below minimum JD count, no centroid emitted")
			continue
		}

		centroid := &models.MarketCentroid{
			Archetype:      archetype,
			WindowStart:    windowStart,
			WindowEnd:      now,
			Centroid:       embeddings.Mean(vectors),
			EmbeddingModel: e.embedder.ModelName(),
			JDCount:        len(vectors),
		}

		previous, err := e.storage.Centroids().CentroidBefore(ctx, archetype, windowStart)
		switch {
		case err == nil:
			centroid.ShiftFromPrevious = embeddings.CosineDistance(centroid.Centroid, previous.Centroid)
			gained, lost, err := e.termDrift(ctx, previous.Centroid, centroid.Centroid)
			if err != nil {
				return created, err
			}
			centroid.TopGainedTerms = gained
			centroid.TopLostTerms = lost
		case common.IsNotFound(err):
			// First window for the archetype, shift stays zero.
		default:
			return created, err
		}

		if _, err := e.storage.Centroids().SaveCentroid(ctx, centroid); err != nil {
			if errors.Is(err, common.ErrConflict) {
				e.logger.Debug().
					Str("archetype", string(archetype)).
					Str("window_start", windowStart.Format(time.RFC3339)).
					Msg("Centroid already exists for window, skipping")
				continue
			}
			return created, err
		}

		created[archetype] = centroid
		e.logger.Info().
			Str("archetype", string(archetype)).
			Int("jd_count", centroid.JDCount).
			Float64("shift", centroid.ShiftFromPrevious).
			Msg("Market centroid computed")
	}

	return created, nil
}

// termDrift scores every reference term's similarity movement between
// two centroids. Terms drifting more than the threshold either way are
// reported, strongest movement first.
func (e *Engine) termDrift(ctx context.Context, oldCentroid, newCentroid []float32) ([]string, []string, error) {
	terms, err := e.referenceVocabulary(ctx)
	if err != nil {
		return nil, nil, err
	}

	type delta struct {
		term  string
		value float64
	}
	deltas := make([]delta, 0, len(terms))
	for _, term := range terms {
		vec, err := e.embedder.Embed(ctx, term)
		if err != nil {
			return nil, nil, err
		}
		deltas = append(deltas, delta{
			term:  term,
			value: embeddings.Cosine(vec, newCentroid) - embeddings.Cosine(vec, oldCentroid),
		})
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].value > deltas[j].value })

	var gained, lost []string
	for _, d := range deltas {
		if d.value > termDriftThreshold {
			gained = append(gained, d.term)
		}
	}
	// Walk from the tail so the strongest decline comes first.
	for i := len(deltas) - 1; i >= 0; i-- {
		if deltas[i].value < -termDriftThreshold {
			lost = append(lost, deltas[i].term)
		}
	}
	return gained, lost, nil
}

// RefreshAlignments recomputes each variant's alignment against the
// latest centroid for its archetype.
func (e *Engine) RefreshAlignments(ctx context.Context) error {
	variants, err := e.storage.Variants().ListVariants(ctx)
	if err != nil {
		return err
	}

	for _, variant := range variants {
		centroid, err := e.storage.Centroids().LatestCentroid(ctx, variant.Archetype)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return err
		}
		if len(variant.Embedding) == 0 {
			continue
		}
		if variant.EmbeddingModel != centroid.EmbeddingModel {
			return fmt.Errorf("%w: variant %s embedded with %q, centroid uses %q",
				common.ErrPermanent, variant.Archetype, variant.EmbeddingModel, centroid.EmbeddingModel)
		}

		alignment := embeddings.Cosine(variant.Embedding, centroid.Centroid)
		if err := e.storage.Variants().UpdateAlignment(ctx, variant.Archetype, alignment); err != nil {
			return err
		}
		e.logger.Debug().
			Str("archetype", string(variant.Archetype)).
			Float64("alignment", alignment).
			Msg("Variant alignment refreshed")
	}
	return nil
}
