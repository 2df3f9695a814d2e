package outcomes

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

const (
	knownSenderMinSimilarity = 0.7
	domainLabelMinSimilarity = 0.5
	titleMinJaccard          = 0.2
	techTagBonus             = 0.1
	autoMatchMinScore        = 0.5
	maxReviewCandidates      = 3
)

// structuredSenderDomains are job-board notification origins whose
// messages carry an external listing identifier.
var structuredSenderDomains = []string{"seek.com.au", "indeed.com", "linkedin.com"}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// Matcher attributes inbound messages to applications, first by the
// structured job-board path, then by the entity and title cascade.
type Matcher struct {
	storage      interfaces.StorageManager
	autoMatchMin float64
	logger       arbor.ILogger
}

func NewMatcher(storage interfaces.StorageManager, config *common.MatcherConfig, logger arbor.ILogger) *Matcher {
	autoMatchMin := autoMatchMinScore
	if config != nil && config.AutoConfidence > 0 {
		autoMatchMin = config.AutoConfidence
	}
	return &Matcher{storage: storage, autoMatchMin: autoMatchMin, logger: logger}
}

// candidate pairs an open application with its listing during scoring.
type candidate struct {
	app     *models.Application
	listing *models.Listing
	score   float64
}

// Match resolves the message to an application and fills in the match
// fields on the message. Ambiguity is not an error: it produces a
// manual-review record with ranked candidates.
func (m *Matcher) Match(ctx context.Context, msg *models.InboundMessage) error {
	msg.SenderClass = classifySender(msg.Sender)

	// Structured path: a board notification carrying the listing id
	// resolves deterministically.
	if msg.SenderClass == models.SenderJobBoard {
		if externalID := ExtractExternalID(msg.Subject + " " + msg.Body); externalID != "" {
			matched, err := m.matchByExternalID(ctx, msg, externalID)
			if err != nil {
				return err
			}
			if matched {
				return nil
			}
		}
	}

	return m.matchCascade(ctx, msg)
}

func (m *Matcher) matchByExternalID(ctx context.Context, msg *models.InboundMessage, externalID string) (bool, error) {
	for _, source := range []string{"seek", "indeed", "linkedin"} {
		listing, err := m.storage.Listings().GetListingByExternalID(ctx, source, externalID)
		if common.IsNotFound(err) {
			continue
		}
		if err != nil {
			return false, err
		}

		app, err := m.storage.Applications().GetApplicationByListing(ctx, listing.ID)
		if common.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		msg.ApplicationID = &app.ID
		msg.MatchMethod = models.MatchExternalID
		msg.MatchScore = 1.0
		m.logger.Info().
			Int64("message_id", msg.ID).
			Int64("application_id", app.ID).
			Str("external_id", externalID).
			Msg("Message matched by listing identifier")
		return true, nil
	}
	return false, nil
}

// matchCascade narrows open applications by sender entity, then scores
// the survivors on title similarity, tech overlap and date proximity.
func (m *Matcher) matchCascade(ctx context.Context, msg *models.InboundMessage) error {
	open, err := m.storage.Applications().ListOpen(ctx)
	if err != nil {
		return err
	}

	candidates, err := m.domainStep(ctx, msg, open)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		msg.MatchMethod = models.MatchNone
		return nil
	}

	messageText := strings.ToLower(msg.Subject + " " + msg.Body)
	bodyLower := strings.ToLower(msg.Body)

	var scored []*candidate
	for _, c := range candidates {
		base := titleOverlap(strings.ToLower(c.listing.Title), messageText)
		if base < titleMinJaccard {
			continue
		}
		c.score = base

		for _, tag := range c.listing.TechTags {
			if strings.Contains(bodyLower, tag) {
				c.score += techTagBonus
			}
		}

		c.score += dateProximityBonus(msg.ReceivedAt, c.app.AppliedAt)
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if len(scored) == 0 {
		msg.MatchMethod = models.MatchNone
		return nil
	}

	// Auto-match needs exactly one candidate above the bar.
	aboveBar := 0
	for _, c := range scored {
		if c.score > m.autoMatchMin {
			aboveBar++
		}
	}
	if aboveBar == 1 && scored[0].score > m.autoMatchMin {
		top := scored[0]
		msg.ApplicationID = &top.app.ID
		msg.MatchMethod = models.MatchFuzzy
		msg.MatchScore = top.score
		m.logger.Info().
			Int64("message_id", msg.ID).
			Int64("application_id", top.app.ID).
			Float64("score", top.score).
			Msg("Message matched by cascade")
		return nil
	}

	msg.MatchMethod = models.MatchNone
	msg.RequiresManualReview = true
	for i, c := range scored {
		if i == maxReviewCandidates {
			break
		}
		msg.Candidates = append(msg.Candidates, models.MatchCandidate{
			ApplicationID: c.app.ID,
			ListingID:     c.listing.ID,
			Title:         c.listing.Title,
			Company:       c.listing.Company,
			Score:         c.score,
		})
	}
	m.logger.Info().
		Int64("message_id", msg.ID).
		Int("candidates", len(msg.Candidates)).
		Msg("Message ambiguous, queued for manual review")
	return nil
}

// domainStep restricts candidates to applications whose hiring entity
// matches the sender. A learned sender is trusted with a higher
// similarity bar than a raw domain label.
func (m *Matcher) domainStep(ctx context.Context, msg *models.InboundMessage, open []*models.Application) ([]*candidate, error) {
	domain := SenderDomain(msg.Sender)
	if domain == "" {
		return nil, nil
	}

	entity := ""
	threshold := domainLabelMinSimilarity
	sender, err := m.storage.Senders().GetSender(ctx, strings.ToLower(msg.Sender))
	switch {
	case err == nil:
		entity = sender.Entity
		threshold = knownSenderMinSimilarity
	case common.IsNotFound(err):
		entity = RootLabel(domain)
	default:
		return nil, err
	}

	entityLower := strings.ToLower(entity)
	var out []*candidate
	for _, app := range open {
		listing, err := m.storage.Listings().GetListing(ctx, app.ListingID)
		if err != nil {
			if common.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if similarity(entityLower, strings.ToLower(listing.Company)) > threshold {
			out = append(out, &candidate{app: app, listing: listing})
		}
	}
	return out, nil
}

// similarity is a normalised Levenshtein ratio over the shorter-token
// containment, so "woolworths" scores high against "Woolworths Group".
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return 0.9
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// titleOverlap is the fraction of title tokens present in the message
// text. Jaccard over the full message drowns short titles in body
// vocabulary, so the overlap is taken over the title set only.
func titleOverlap(title, messageText string) float64 {
	titleTokens := tokenSet(title)
	if len(titleTokens) == 0 {
		return 0
	}
	messageTokens := tokenSet(messageText)
	hits := 0
	for token := range titleTokens {
		if messageTokens[token] {
			hits++
		}
	}
	return float64(hits) / float64(len(titleTokens))
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, token := range wordPattern.FindAllString(s, -1) {
		out[token] = true
	}
	return out
}

// dateProximityBonus rewards messages close to the application date.
// Exactly 30 days still earns the full bonus.
func dateProximityBonus(received, applied time.Time) float64 {
	days := int(received.Sub(applied).Hours() / 24)
	switch {
	case days < 0:
		return 0
	case days <= 30:
		return 0.2
	case days <= 60:
		return 0.1
	}
	return 0
}

// classifySender buckets the sender address by its domain.
func classifySender(address string) models.SenderClass {
	domain := SenderDomain(address)
	if domain == "" {
		return models.SenderUnknown
	}
	for _, board := range structuredSenderDomains {
		if domain == board || strings.HasSuffix(domain, "."+board) {
			return models.SenderJobBoard
		}
	}
	if IsAgencyDomain(domain) {
		return models.SenderAgency
	}
	return models.SenderDirect
}
