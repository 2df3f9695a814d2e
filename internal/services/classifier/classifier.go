package classifier

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/embeddings"
)

const (
	verbHitWeight      = 1.0
	indicatorHitWeight = 0.5
	centroidWeight     = 0.3
	centroidMinSim     = 0.5
)

// techWildcard stands in for a technology phrase in a verb pattern. The
// bound keeps the match inside one clause.
const techWildcard = `[a-z0-9][a-z0-9\-\s\/&,\.]{0,80}`

var sentenceSplit = regexp.MustCompile(`(?:[\.!?])\s+`)

// Result is the full classification output for one description.
type Result struct {
	Scores    map[models.Archetype]float64
	Primary   models.Archetype
	JobType   models.JobType
	Seniority string
	TechTags  []string
	Prior     map[models.Archetype]float64
	Embedding []float32
}

type compiledSet struct {
	verbs      []*regexp.Regexp
	indicators []string
}

// Classifier scores job descriptions against the archetype phrase rules,
// with a seed-centroid similarity term layered on top. Seed centroids
// and sentence similarities always use the local hash embedder, so rule
// scoring stays deterministic and identical whatever embedding backend
// the deployment stores vectors with.
type Classifier struct {
	compiled  map[models.Archetype]compiledSet
	embedder  *embeddings.HashEmbedder
	centroids map[models.Archetype][]float32
	logger    arbor.ILogger
}

// New builds a classifier from the default pattern tables.
func New(logger arbor.ILogger) *Classifier {
	c := &Classifier{
		compiled: make(map[models.Archetype]compiledSet),
		embedder: embeddings.NewHashEmbedder(embeddings.FallbackDimension),
		logger:   logger,
	}
	for archetype, set := range archetypePatterns {
		c.compiled[archetype] = compilePatterns(set)
	}
	c.centroids = c.buildSeedCentroids()
	return c
}

func compilePatterns(set patternSet) compiledSet {
	out := compiledSet{}
	for _, pattern := range set.VerbPatterns {
		escaped := regexp.QuoteMeta(strings.ToLower(pattern))
		if strings.Contains(pattern, "{tech}") {
			// Descriptions often join verbs with punctuation, e.g.
			// "designing, building and maintaining pipelines".
			escaped = strings.ReplaceAll(escaped, `\ `, `[\s,;:/&\-]+`)
		} else {
			escaped = strings.ReplaceAll(escaped, `\ `, `\s+`)
		}
		escaped = strings.ReplaceAll(escaped, regexp.QuoteMeta("{tech}"), techWildcard)
		out.verbs = append(out.verbs, regexp.MustCompile(escaped))
	}
	for _, indicator := range set.SentenceIndicators {
		out.indicators = append(out.indicators, strings.ToLower(indicator))
	}
	return out
}

// buildSeedCentroids averages the embeddings of each archetype's phrase
// vocabulary. Sentence similarity against these centroids supplements
// the rule hits.
func (c *Classifier) buildSeedCentroids() map[models.Archetype][]float32 {
	centroids := make(map[models.Archetype][]float32, len(archetypePatterns))
	for archetype, set := range archetypePatterns {
		phrases := append([]string{}, set.VerbPatterns...)
		phrases = append(phrases, set.SentenceIndicators...)
		vecs := make([][]float32, 0, len(phrases))
		for _, phrase := range phrases {
			vecs = append(vecs, c.embedder.Embed(phrase))
		}
		if centroid := embeddings.Mean(vecs); centroid != nil {
			centroids[archetype] = centroid
		}
	}
	return centroids
}

// centroidContribution weights a sentence's centroid similarity into the
// raw score. Similarity at or above the floor contributes; below it, a
// sentence adds nothing.
func centroidContribution(sim float64) float64 {
	if sim < centroidMinSim {
		return 0
	}
	return sim * centroidWeight
}

func splitSentences(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, chunk := range sentenceSplit.Split(text, -1) {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// Score returns archetype weights for a description, normalised to sum
// to 1.0. A description with no signal at all scores uniformly.
func (c *Classifier) Score(description, title string) map[models.Archetype]float64 {
	sentences := splitSentences(description)
	textLower := strings.ToLower(description)
	titleLower := strings.ToLower(title)

	raw := make(map[models.Archetype]float64, len(models.AllArchetypes))
	for _, a := range models.AllArchetypes {
		raw[a] = 0
	}

	for _, sentence := range sentences {
		sentenceLower := strings.ToLower(sentence)

		for archetype, set := range c.compiled {
			for _, pattern := range set.verbs {
				if pattern.MatchString(sentenceLower) {
					raw[archetype] += verbHitWeight
				}
			}
			for _, indicator := range set.indicators {
				if strings.Contains(sentenceLower, indicator) {
					raw[archetype] += indicatorHitWeight
				}
			}
		}

		vec := c.embedder.Embed(sentenceLower)
		for archetype, centroid := range c.centroids {
			raw[archetype] += centroidContribution(embeddings.Cosine(vec, centroid))
		}
	}

	// Type priors and keyword boosts shift raw scores before clamping.
	for archetype, shift := range typePrior(extractJobType(textLower)) {
		raw[archetype] += shift
	}
	for archetype, boost := range keywordBoosts(textLower, titleLower) {
		raw[archetype] += boost
	}

	total := 0.0
	for a, v := range raw {
		if v < 0 {
			raw[a] = 0
			continue
		}
		total += v
	}
	if total == 0 {
		uniform := make(map[models.Archetype]float64, len(models.AllArchetypes))
		for _, a := range models.AllArchetypes {
			uniform[a] = 0.25
		}
		return uniform
	}

	for a := range raw {
		raw[a] = raw[a] / total
	}
	return raw
}

// Classify runs scoring plus metadata extraction and attaches the local
// description embedding. The stored listing embedding comes from the
// embedding service, not from here.
func (c *Classifier) Classify(description, title string) *Result {
	textLower := strings.ToLower(description)
	jobType := extractJobType(textLower)

	scores := c.Score(description, title)
	return &Result{
		Scores:    scores,
		Primary:   models.PrimaryArchetype(scores),
		JobType:   jobType,
		Seniority: extractSeniority(strings.ToLower(title)),
		TechTags:  extractTechTags(textLower),
		Prior:     typePrior(jobType),
		Embedding: c.embedder.Embed(description),
	}
}

// SeedCentroid returns the phrase-vocabulary centroid for one archetype.
func (c *Classifier) SeedCentroid(archetype models.Archetype) []float32 {
	return c.centroids[archetype]
}

func extractJobType(textLower string) models.JobType {
	for _, token := range []string{"contract", "fixed term", "fixed-term", "6 month", "12 month"} {
		if strings.Contains(textLower, token) {
			return models.JobTypeContract
		}
	}
	for _, token := range []string{"permanent", "full-time", "full time", "ongoing"} {
		if strings.Contains(textLower, token) {
			return models.JobTypePermanent
		}
	}
	return models.JobTypeUnknown
}

func extractSeniority(titleLower string) string {
	switch {
	case containsAny(titleLower, "junior", "graduate", "entry"):
		return "junior"
	case containsAny(titleLower, "senior", "sr.", "sr "):
		return "senior"
	case containsAny(titleLower, "lead", "principal", "staff", "head of"):
		return "lead"
	}
	return "mid"
}

func extractTechTags(textLower string) []string {
	var tags []string
	for _, tech := range knownTech {
		if strings.Contains(textLower, tech) {
			tags = append(tags, tech)
		}
	}
	return tags
}

// typePrior maps role type to the pre-normalisation score shift.
// Contract roles skew toward project-shaped work, permanent roles
// toward stewardship.
func typePrior(jobType models.JobType) map[models.Archetype]float64 {
	switch jobType {
	case models.JobTypeContract:
		return map[models.Archetype]float64{
			models.ArchetypeBuilder:    0.1,
			models.ArchetypeFixer:      0.1,
			models.ArchetypeOperator:   -0.05,
			models.ArchetypeTranslator: -0.05,
		}
	case models.JobTypePermanent:
		return map[models.Archetype]float64{
			models.ArchetypeBuilder:    -0.05,
			models.ArchetypeFixer:      -0.05,
			models.ArchetypeOperator:   0.05,
			models.ArchetypeTranslator: 0.05,
		}
	}
	return nil
}

// keywordBoosts adds weight for strong archetype cues that the
// per-sentence rules undercount, such as noun-form "migration".
func keywordBoosts(textLower, titleLower string) map[models.Archetype]float64 {
	boosts := make(map[models.Archetype]float64, len(models.AllArchetypes))

	if containsAny(textLower, strongFixerTokens...) {
		boosts[models.ArchetypeFixer] += 1.2
	} else if countHits(textLower, mediumFixerTokens) >= 2 {
		boosts[models.ArchetypeFixer] += 1.0
	}

	if containsAny(textLower, hardOperatorTokens...) {
		boosts[models.ArchetypeOperator] += 1.2
	} else if countHits(textLower, softOperatorTokens) >= 2 {
		boosts[models.ArchetypeOperator] += 0.8
	}

	// Translator stays conservative so data engineering roles that
	// merely mention stakeholders do not flip.
	translatorHits := countHits(textLower, translatorTokens)
	if translatorHits >= 2 {
		boosts[models.ArchetypeTranslator] += 0.8
	} else if translatorHits == 1 && strings.Contains(textLower, "self-serve") {
		boosts[models.ArchetypeTranslator] += 0.5
	}

	if containsAny(textLower, builderTokens...) {
		boosts[models.ArchetypeBuilder] += 0.6
	}

	if strings.Contains(titleLower, "data architect") && boosts[models.ArchetypeFixer] > 0 {
		boosts[models.ArchetypeFixer] += 0.2
	}
	if strings.Contains(titleLower, "platform engineer") && boosts[models.ArchetypeOperator] > 0 {
		boosts[models.ArchetypeOperator] += 0.2
	}

	return boosts
}

func containsAny(s string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func countHits(s string, tokens []string) int {
	hits := 0
	for _, token := range tokens {
		if strings.Contains(s, token) {
			hits++
		}
	}
	return hits
}
