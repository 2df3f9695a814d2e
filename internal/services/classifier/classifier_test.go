package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return New(common.GetLogger())
}

func TestScoreBuilderListing(t *testing.T) {
	c := newTestClassifier(t)

	text := "We need you to design and implement a new cloud-native data platform from the ground up. " +
		"This is a 6 month contract with a newly created team."
	scores := c.Score(text, "Senior Data Engineer")

	require.Len(t, scores, 4)
	assert.Equal(t, models.ArchetypeBuilder, models.PrimaryArchetype(scores))
	assert.Greater(t, scores[models.ArchetypeBuilder], scores[models.ArchetypeFixer])
	assert.Greater(t, scores[models.ArchetypeBuilder], scores[models.ArchetypeOperator])
	assert.Greater(t, scores[models.ArchetypeBuilder], scores[models.ArchetypeTranslator])
	assert.GreaterOrEqual(t, scores[models.ArchetypeBuilder], 0.50)
}

func TestScoreFixerListing(t *testing.T) {
	c := newTestClassifier(t)

	text := "Migrate legacy Redshift warehouse to Snowflake and retire aging ETL. " +
		"You will decommission outdated systems as part of a transformation program."
	scores := c.Score(text, "Data Engineer")

	assert.Equal(t, models.ArchetypeFixer, models.PrimaryArchetype(scores))
}

func TestScoreOperatorListing(t *testing.T) {
	c := newTestClassifier(t)

	text := "Provide production support for our mature platform. You will join the on-call rotation, " +
		"handle incident response and maintain runbook documentation to meet our SLA targets."
	scores := c.Score(text, "Platform Engineer")

	assert.Equal(t, models.ArchetypeOperator, models.PrimaryArchetype(scores))
}

func TestScoreNormalisesToOne(t *testing.T) {
	c := newTestClassifier(t)

	scores := c.Score("Build a greenfield data platform and migrate legacy pipelines.", "")

	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestScoreNoSignalIsUniform(t *testing.T) {
	c := newTestClassifier(t)

	scores := c.Score("zzz qqq xxx", "")

	for _, a := range models.AllArchetypes {
		assert.InDelta(t, 0.25, scores[a], 1e-9)
	}
}

func TestContractPriorShiftsBuilderPreNormalisation(t *testing.T) {
	c := newTestClassifier(t)

	// Same text, one marked contract and one permanent. The contract
	// prior adds +0.1 builder pre-normalisation so the builder share
	// must be strictly higher.
	base := "Design and implement a new ingestion platform. "
	contract := c.Score(base+"This is a 12 month contract.", "")
	permanent := c.Score(base+"This is a permanent full-time role.", "")

	assert.Greater(t, contract[models.ArchetypeBuilder], permanent[models.ArchetypeBuilder])
}

func TestPrimaryTieBreakOrder(t *testing.T) {
	scores := map[models.Archetype]float64{
		models.ArchetypeBuilder:    0.25,
		models.ArchetypeFixer:      0.25,
		models.ArchetypeOperator:   0.25,
		models.ArchetypeTranslator: 0.25,
	}
	assert.Equal(t, models.ArchetypeBuilder, models.PrimaryArchetype(scores))

	scores[models.ArchetypeBuilder] = 0.1
	scores[models.ArchetypeFixer] = 0.3
	scores[models.ArchetypeOperator] = 0.3
	assert.Equal(t, models.ArchetypeFixer, models.PrimaryArchetype(scores))
}

func TestExtractJobType(t *testing.T) {
	assert.Equal(t, models.JobTypeContract, extractJobType("initial 6 month engagement"))
	assert.Equal(t, models.JobTypeContract, extractJobType("fixed-term position"))
	assert.Equal(t, models.JobTypePermanent, extractJobType("permanent full time role"))
	assert.Equal(t, models.JobTypeUnknown, extractJobType("an exciting opportunity"))
}

func TestExtractSeniority(t *testing.T) {
	assert.Equal(t, "junior", extractSeniority("graduate data analyst"))
	assert.Equal(t, "senior", extractSeniority("senior data engineer"))
	assert.Equal(t, "lead", extractSeniority("principal engineer"))
	assert.Equal(t, "mid", extractSeniority("data engineer"))
}

func TestExtractTechTags(t *testing.T) {
	tags := extractTechTags("experience with snowflake, dbt and power bi required")
	assert.Equal(t, []string{"snowflake", "dbt", "power bi"}, tags)

	assert.Empty(t, extractTechTags("no recognised tooling here"))
}

func TestVerbPatternMatchesTechWildcard(t *testing.T) {
	c := newTestClassifier(t)

	// The wildcard has to span multi-word tech phrases and JD
	// punctuation between verb and object.
	scores := c.Score("You will be designing, building and maintaining modern data pipelines on AWS.", "")
	assert.Greater(t, scores[models.ArchetypeBuilder], 0.0)
}

func TestClassifyAttachesMetadataAndEmbedding(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("Build a greenfield Snowflake platform. 6 month contract.", "Senior Data Engineer")

	require.NotNil(t, result)
	assert.Equal(t, models.ArchetypeBuilder, result.Primary)
	assert.Equal(t, models.JobTypeContract, result.JobType)
	assert.Equal(t, "senior", result.Seniority)
	assert.Contains(t, result.TechTags, "snowflake")
	require.NotEmpty(t, result.Embedding)

	var norm float64
	for _, v := range result.Embedding {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestCentroidContributionBoundary(t *testing.T) {
	// Similarity exactly at the floor contributes.
	assert.InDelta(t, 0.5*centroidWeight, centroidContribution(0.5), 1e-9)
	assert.InDelta(t, 0.8*centroidWeight, centroidContribution(0.8), 1e-9)
	assert.Zero(t, centroidContribution(0.49))
}

func TestSeedCentroidsExistForAllArchetypes(t *testing.T) {
	c := newTestClassifier(t)
	for _, a := range models.AllArchetypes {
		assert.NotEmpty(t, c.SeedCentroid(a), string(a))
	}
}
