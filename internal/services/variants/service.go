package variants

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/models"
)

// variantExtensions are tried in order when resolving an archetype's
// resume file in the variants directory.
var variantExtensions = []string{".md", ".txt"}

// Service keeps the resume variant records in sync with the files on
// disk. One file per archetype, named after it (builder.md, fixer.md,
// ...). Version ids are content hashes so an external rewrite shows up
// as a new version on the next sync.
type Service struct {
	dir      string
	storage  interfaces.StorageManager
	embedder interfaces.EmbeddingService
	logger   arbor.ILogger
}

func NewService(dir string, storage interfaces.StorageManager, embedder interfaces.EmbeddingService, logger arbor.ILogger) *Service {
	return &Service{
		dir:      dir,
		storage:  storage,
		embedder: embedder,
		logger:   logger,
	}
}

// CurrentVersion hashes the file content. Equal content yields equal
// version ids.
func (s *Service) CurrentVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read variant file: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

// resolvePath finds the resume file for an archetype, or "".
func (s *Service) resolvePath(archetype models.Archetype) string {
	for _, ext := range variantExtensions {
		path := filepath.Join(s.dir, string(archetype)+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// MarkRewritten records that the archetype's resume was rewritten in
// response to a rewrite trigger, stamping the new content version. The
// embedding refresh happens on the next Sync.
func (s *Service) MarkRewritten(ctx context.Context, archetype models.Archetype) error {
	path := s.resolvePath(archetype)
	if path == "" {
		return fmt.Errorf("%w: no resume file for %s in %s", common.ErrNotFound, archetype, s.dir)
	}
	version, err := s.CurrentVersion(path)
	if err != nil {
		return err
	}
	return s.storage.Variants().MarkRewritten(ctx, archetype, version, time.Now().UTC())
}

// Sync walks the variants directory and refreshes every archetype's
// record: new content gets a new version id, a fresh embedding and a
// rewritten timestamp. Returns the archetypes whose content changed.
func (s *Service) Sync(ctx context.Context) ([]models.Archetype, error) {
	var changed []models.Archetype

	for _, archetype := range models.AllArchetypes {
		path := s.resolvePath(archetype)
		if path == "" {
			s.logger.Debug().Str("archetype", string(archetype)).Msg("No resume file for archetype")
			continue
		}

		version, err := s.CurrentVersion(path)
		if err != nil {
			return changed, err
		}

		existing, err := s.storage.Variants().GetVariant(ctx, archetype)
		if err != nil && !common.IsNotFound(err) {
			return changed, err
		}
		if existing != nil && existing.CurrentVersion == version {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return changed, err
		}
		vector, err := s.embedder.Embed(ctx, string(data))
		if err != nil {
			return changed, fmt.Errorf("failed to embed %s variant: %w", archetype, err)
		}

		now := time.Now().UTC()
		variant := &models.ResumeVariant{
			Archetype:      archetype,
			FilePath:       path,
			CurrentVersion: version,
			Embedding:      vector,
			EmbeddingModel: s.embedder.ModelName(),
			UpdatedAt:      now,
		}
		if existing != nil {
			// Content changed since the last sync: an external rewrite
			// was committed.
			variant.LastRewritten = &now
			variant.AlignmentScore = existing.AlignmentScore
		}
		if err := s.storage.Variants().UpsertVariant(ctx, variant); err != nil {
			return changed, err
		}
		changed = append(changed, archetype)

		s.logger.Info().
			Str("archetype", string(archetype)).
			Str("version", version).
			Bool("rewrite", existing != nil).
			Msg("Resume variant synced")
	}
	return changed, nil
}
