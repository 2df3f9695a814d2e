package outcomes

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/storage"
)

func setupMatcher(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()

	logger := common.GetLogger()
	manager, err := storage.NewManager(&common.StoreConfig{
		Engine: "sqlite",
		SQLite: common.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	return NewService(manager, &common.MatcherConfig{AutoConfidence: 0.5}, logger), manager
}

// seedApplication stores a classified listing plus a submitted
// application and returns the application id.
func seedApplication(t *testing.T, manager *storage.Manager, externalID, title, company string, appliedAt time.Time, tags ...string) int64 {
	t.Helper()
	ctx := context.Background()

	listing := &models.Listing{
		ExternalID:  externalID,
		Source:      "seek",
		Title:       title,
		Company:     company,
		Description: title + " at " + company,
		FirstSeen:   appliedAt.Add(-48 * time.Hour),
		TechTags:    tags,
		Classified:  true,
	}
	listingID, err := manager.Listings().SaveListing(ctx, listing)
	require.NoError(t, err)

	appID, err := manager.Applications().CreateApplication(ctx, &models.Application{
		ListingID:     listingID,
		BatchID:       "batch_test",
		Archetype:     models.ArchetypeBuilder,
		ResumeVersion: "v1",
		AppliedAt:     appliedAt,
	})
	require.NoError(t, err)
	return appID
}

func TestCascadeAutoMatch(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	appliedAt := time.Now().UTC().Add(-8 * 24 * time.Hour)
	appID := seedApplication(t, manager, "100", "Senior Data Engineer", "Woolworths", appliedAt, "snowflake")

	msg := &models.InboundMessage{
		ExternalMessageID: "m1",
		Source:            "email",
		Sender:            "jane@woolworths.com.au",
		Subject:           "Senior Data Engineer role - next steps",
		Body:              "Hi, we would like to schedule a time to chat about the Senior Data Engineer position.",
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, svc.ProcessMessage(ctx, msg))

	require.NotNil(t, msg.ApplicationID)
	assert.Equal(t, appID, *msg.ApplicationID)
	assert.Equal(t, models.MatchFuzzy, msg.MatchMethod)
	assert.Greater(t, msg.MatchScore, 0.5)
	assert.Equal(t, models.OutcomeInterview, msg.Outcome)

	// Auto-match advances the funnel and learns the sender.
	app, err := manager.Applications().GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, app.OutcomeStage)

	sender, err := manager.Senders().GetSender(ctx, "jane@woolworths.com.au")
	require.NoError(t, err)
	assert.Equal(t, "Woolworths", sender.Entity)
}

func TestCascadeAmbiguousGoesToManualReview(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	appliedAt := time.Now().UTC().Add(-5 * 24 * time.Hour)
	seedApplication(t, manager, "200", "Data Engineer", "Acme", appliedAt)
	seedApplication(t, manager, "201", "Senior Data Engineer", "Acme", appliedAt)

	msg := &models.InboundMessage{
		ExternalMessageID: "m2",
		Source:            "email",
		Sender:            "talent@acme.com",
		Subject:           "Data Engineer application",
		Body:              "Regarding your Data Engineer application with Acme.",
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, svc.ProcessMessage(ctx, msg))

	assert.Nil(t, msg.ApplicationID)
	assert.True(t, msg.RequiresManualReview)
	require.NotEmpty(t, msg.Candidates)
	assert.LessOrEqual(t, len(msg.Candidates), 3)
}

func TestCascadeNoDomainMatchIsUnmatched(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	seedApplication(t, manager, "300", "Data Engineer", "Woolworths", time.Now().UTC().Add(-24*time.Hour))

	msg := &models.InboundMessage{
		ExternalMessageID: "m3",
		Source:            "email",
		Sender:            "noreply@unrelatedcorp.io",
		Subject:           "Completely different topic",
		Body:              "Nothing to do with your application.",
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, svc.ProcessMessage(ctx, msg))

	assert.Nil(t, msg.ApplicationID)
	assert.Equal(t, models.MatchNone, msg.MatchMethod)
	assert.False(t, msg.RequiresManualReview)
}

func TestStructuredMatchByExternalID(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	appID := seedApplication(t, manager, "84412", "Data Engineer", "Coles", time.Now().UTC().Add(-72*time.Hour))

	msg := &models.InboundMessage{
		ExternalMessageID: "m4",
		Source:            "email",
		Sender:            "noreply@seek.com.au",
		Subject:           "Your application was viewed",
		Body:              "The employer has viewed your application: https://www.seek.com.au/job/84412",
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, svc.ProcessMessage(ctx, msg))

	require.NotNil(t, msg.ApplicationID)
	assert.Equal(t, appID, *msg.ApplicationID)
	assert.Equal(t, models.MatchExternalID, msg.MatchMethod)
	assert.Equal(t, models.OutcomeViewed, msg.Outcome)
}

func TestReingestingSameMessageIsNoOp(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	seedApplication(t, manager, "400", "Data Engineer", "Acme", time.Now().UTC().Add(-24*time.Hour))

	build := func() *models.InboundMessage {
		return &models.InboundMessage{
			ExternalMessageID: "m5",
			Source:            "email",
			Sender:            "hr@acme.com",
			Subject:           "Data Engineer",
			Body:              "Thank you for applying. We have received your application for Data Engineer at Acme.",
			ReceivedAt:        time.Now().UTC(),
		}
	}
	require.NoError(t, svc.ProcessMessage(ctx, build()))
	require.NoError(t, svc.ProcessMessage(ctx, build()))

	count, err := manager.Messages().CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOutcomeNeverDemoted(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	appliedAt := time.Now().UTC().Add(-10 * 24 * time.Hour)
	appID := seedApplication(t, manager, "500", "Senior Data Engineer", "Woolworths", appliedAt)

	advanced, err := manager.Applications().ApplyOutcome(ctx, appID, models.OutcomeInterview, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, advanced)

	msg := &models.InboundMessage{
		ExternalMessageID: "m6",
		Source:            "email",
		Sender:            "jane@woolworths.com.au",
		Subject:           "Senior Data Engineer application received",
		Body:              "Thank you for applying for the Senior Data Engineer role. We have received your application.",
		ReceivedAt:        time.Now().UTC(),
	}
	require.NoError(t, svc.ProcessMessage(ctx, msg))

	app, err := manager.Applications().GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, app.OutcomeStage)
}

func TestDateProximityBoundaries(t *testing.T) {
	received := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, 0.2, dateProximityBonus(received, received.Add(-30*24*time.Hour)), 1e-9)
	assert.InDelta(t, 0.1, dateProximityBonus(received, received.Add(-31*24*time.Hour)), 1e-9)
	assert.InDelta(t, 0.1, dateProximityBonus(received, received.Add(-60*24*time.Hour)), 1e-9)
	assert.Zero(t, dateProximityBonus(received, received.Add(-61*24*time.Hour)))
	assert.Zero(t, dateProximityBonus(received, received.Add(24*time.Hour)))
}

func TestRootLabel(t *testing.T) {
	assert.Equal(t, "woolworths", RootLabel("woolworths.com.au"))
	assert.Equal(t, "acme", RootLabel("mail.acme.co.uk"))
	assert.Equal(t, "acme", RootLabel("acme.com"))
	assert.Equal(t, "acme", RootLabel("careers.acme.com"))
}

func TestExtractExternalID(t *testing.T) {
	assert.Equal(t, "12345", ExtractExternalID("https://www.seek.com.au/job/12345?ref=email"))
	assert.Equal(t, "9876", ExtractExternalID("click here: ?jobId=9876&src=alert"))
	assert.Empty(t, ExtractExternalID("no identifiers here"))
}

func TestClassifySender(t *testing.T) {
	assert.Equal(t, models.SenderJobBoard, classifySender("noreply@seek.com.au"))
	assert.Equal(t, models.SenderAgency, classifySender("jobs@haystalent.com"))
	assert.Equal(t, models.SenderDirect, classifySender("jane@woolworths.com.au"))
	assert.Equal(t, models.SenderUnknown, classifySender("not-an-address"))
}

func TestLogCallRoutesThroughCascade(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	appID := seedApplication(t, manager, "600", "Senior Data Engineer", "Woolworths", time.Now().UTC().Add(-4*24*time.Hour))

	call := &models.CallLog{
		CallerNumber: "+61400000000",
		Entity:       "Woolworths",
		Notes:        "Called about the Senior Data Engineer application, wants to arrange a time.",
		Outcome:      models.OutcomeInterview,
		OccurredAt:   time.Now().UTC(),
	}
	require.NoError(t, svc.LogCall(ctx, call))

	require.NotNil(t, call.ApplicationID)
	assert.Equal(t, appID, *call.ApplicationID)

	app, err := manager.Applications().GetApplication(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, app.OutcomeStage)
}

func TestMarkGhostedOnlyMovesSubmitted(t *testing.T) {
	svc, manager := setupMatcher(t)
	ctx := context.Background()

	oldApplied := time.Now().UTC().Add(-30 * 24 * time.Hour)
	ghostID := seedApplication(t, manager, "700", "Data Engineer", "Acme", oldApplied)
	interviewedID := seedApplication(t, manager, "701", "Data Engineer II", "Beta", oldApplied)

	_, err := manager.Applications().ApplyOutcome(ctx, interviewedID, models.OutcomeInterview, time.Now().UTC())
	require.NoError(t, err)

	marked, err := svc.MarkGhosted(ctx, 21*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	ghosted, err := manager.Applications().GetApplication(ctx, ghostID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeGhost, ghosted.OutcomeStage)

	interviewed, err := manager.Applications().GetApplication(ctx, interviewedID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeInterview, interviewed.OutcomeStage)
}
