package drift

import (
	"context"
	"regexp"
	"sort"
)

const (
	vocabularyTermLimit   = 200
	vocabularySourceLimit = 500
	termDriftThreshold    = 0.02
)

// termPattern extracts candidate vocabulary terms: lowercase words of
// four letters or more, hyphens allowed.
var termPattern = regexp.MustCompile(`[a-z][a-z\-]{3,}`)

// referenceVocabulary returns the highest-frequency terms across the
// most recent job descriptions, the fixed yardstick for term drift.
func (e *Engine) referenceVocabulary(ctx context.Context) ([]string, error) {
	descriptions, err := e.storage.Listings().RecentDescriptions(ctx, vocabularySourceLimit)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, description := range descriptions {
		for _, term := range termPattern.FindAllString(description, -1) {
			counts[term]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > vocabularyTermLimit {
		terms = terms[:vocabularyTermLimit]
	}
	return terms, nil
}
