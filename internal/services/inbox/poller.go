package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
	"github.com/wmarzella/ronin/internal/services/outcomes"
	"github.com/wmarzella/ronin/internal/storage/spool"
)

// watermarkKey tracks the last processed message per mailbox in
// sync_state.
const watermarkKey = "inbox_last_message_id"

// Poller pulls recruiter email from the configured IMAP mailbox and
// feeds each message through the outcome pipeline. Polling is
// incremental: a SINCE search bounded by the lookback window plus
// dedupe on external message id.
type Poller struct {
	config   *common.InboxConfig
	storage  interfaces.StorageManager
	outcomes *outcomes.Service
	spool    *spool.Spool
	logger   arbor.ILogger
}

func NewPoller(config *common.InboxConfig, storage interfaces.StorageManager, outcomeService *outcomes.Service, sp *spool.Spool, logger arbor.ILogger) *Poller {
	return &Poller{
		config:   config,
		storage:  storage,
		outcomes: outcomeService,
		spool:    sp,
		logger:   logger,
	}
}

// Configured reports whether enough settings exist to poll.
func (p *Poller) Configured() bool {
	return p.config.Host != "" && p.config.Username != "" && p.config.Password != ""
}

// Poll fetches messages newer than the lookback window and processes
// each one. Returns the number of newly processed messages.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	if !p.Configured() {
		return 0, fmt.Errorf("%w: inbox credentials not configured", common.ErrValidation)
	}

	addr := fmt.Sprintf("%s:%d", p.config.Host, p.config.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to connect to %s: %v", common.ErrTransient, addr, err)
	}
	defer c.Logout()

	if err := c.Login(p.config.Username, p.config.Password); err != nil {
		return 0, fmt.Errorf("%w: IMAP login failed: %v", common.ErrPermanent, err)
	}

	folder := p.config.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, true); err != nil {
		return 0, fmt.Errorf("failed to select %s: %w", folder, err)
	}

	lookback := p.config.LookbackDays
	if lookback <= 0 {
		lookback = 1
	}
	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().UTC().AddDate(0, 0, -lookback)

	seqNums, err := c.Search(criteria)
	if err != nil {
		return 0, fmt.Errorf("%w: inbox search failed: %v", common.ErrTransient, err)
	}
	if len(seqNums) == 0 {
		return 0, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(seqNums))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	processed := 0
	lastID := ""
	for raw := range messages {
		if raw == nil {
			continue
		}

		msg, err := p.decode(raw, section)
		if err != nil {
			p.logger.Warn().Err(err).Int64("seq", int64(raw.SeqNum)).Msg("Failed to decode message, skipping")
			continue
		}

		handled, err := p.process(ctx, msg)
		if err != nil {
			// Drain the fetch before surfacing the failure.
			for range messages {
			}
			<-done
			return processed, err
		}
		if handled {
			processed++
		}
		lastID = msg.ExternalMessageID
	}

	if err := <-done; err != nil {
		return processed, fmt.Errorf("%w: inbox fetch failed: %v", common.ErrTransient, err)
	}

	if lastID != "" {
		if err := p.storage.SyncState().SetState(ctx, watermarkKey, lastID); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to persist inbox watermark")
		}
	}

	if processed > 0 {
		p.logger.Info().Int("count", processed).Msg("Inbox poll complete")
	}
	return processed, nil
}

// process runs dedupe and the ignore list, then hands the message to
// the outcome pipeline. Transient store failures divert to the spool.
func (p *Poller) process(ctx context.Context, msg *models.InboundMessage) (bool, error) {
	_, err := p.storage.Messages().GetMessageByExternalID(ctx, msg.Source, msg.ExternalMessageID)
	if err == nil {
		return false, nil // Already processed
	}
	if !common.IsNotFound(err) {
		return false, err
	}

	ignored, err := p.storage.Senders().IsIgnored(ctx, strings.ToLower(msg.Sender))
	if err != nil {
		return false, err
	}
	if ignored {
		p.logger.Debug().Str("sender", msg.Sender).Msg("Sender on ignore list, skipping")
		return false, nil
	}

	if err := p.outcomes.ProcessMessage(ctx, msg); err != nil {
		if errors.Is(err, common.ErrTransient) && p.spool != nil {
			if spoolErr := p.spool.EnqueueMessage(ctx, msg); spoolErr != nil {
				return false, spoolErr
			}
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// decode turns a fetched IMAP message into an InboundMessage. HTML-only
// bodies are flattened to text.
func (p *Poller) decode(raw *imap.Message, section *imap.BodySectionName) (*models.InboundMessage, error) {
	if raw.Envelope == nil {
		return nil, fmt.Errorf("message has no envelope")
	}

	sender := ""
	if len(raw.Envelope.From) > 0 {
		sender = raw.Envelope.From[0].Address()
	}

	externalID := strings.Trim(raw.Envelope.MessageId, "<>")
	if externalID == "" {
		externalID = fmt.Sprintf("seq-%d-%d", raw.SeqNum, raw.Envelope.Date.Unix())
	}

	body, err := p.extractBody(raw, section)
	if err != nil {
		return nil, err
	}

	return &models.InboundMessage{
		ExternalMessageID: externalID,
		Source:            "email",
		Sender:            sender,
		Subject:           raw.Envelope.Subject,
		Body:              body,
		ReceivedAt:        raw.Envelope.Date.UTC(),
	}, nil
}

func (p *Poller) extractBody(raw *imap.Message, section *imap.BodySectionName) (string, error) {
	r := raw.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			plain = string(b)
		case strings.HasPrefix(contentType, "text/html") && html == "":
			b, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			html = string(b)
		}
	}

	if plain != "" {
		return strings.TrimSpace(plain), nil
	}
	return outcomes.HTMLToText(html), nil
}
