package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/storage"
)

const snapshotPrefix = "ronin-"

// Service snapshots the embedded store. Snapshots are full copies taken
// with VACUUM INTO, so each file is a standalone consistent database.
// The postgres engine is expected to have its own backup regime; Run is
// a no-op there.
type Service struct {
	db     *storage.DB
	config *common.BackupConfig
	logger arbor.ILogger
}

func NewService(db *storage.DB, config *common.BackupConfig, logger arbor.ILogger) *Service {
	return &Service{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Run takes a snapshot and prunes old ones down to the retention count.
// Returns the path of the new snapshot, or "" when the engine does not
// support file snapshots.
func (s *Service) Run(ctx context.Context) (string, error) {
	if s.db.Dialect() != storage.DialectSQLite {
		s.logger.Info().Msg("Backup skipped: postgres engine manages its own backups")
		return "", nil
	}
	if s.config.Dir == "" {
		return "", common.ValidationError("store.backup.dir", "is required for backups")
	}

	if err := os.MkdirAll(s.config.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := snapshotPrefix + time.Now().UTC().Format("20060102-150405") + ".db"
	dest := filepath.Join(s.config.Dir, name)

	// VACUUM INTO writes a compacted copy without blocking writers in
	// WAL mode.
	if _, err := s.db.DB().ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return "", fmt.Errorf("snapshot failed: %w", err)
	}

	pruned, err := s.prune()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to prune old snapshots")
	}

	s.logger.Info().
		Str("snapshot", dest).
		Int("pruned", pruned).
		Msg("Backup complete")
	return dest, nil
}

// prune removes the oldest snapshots beyond the retention count.
func (s *Service) prune() (int, error) {
	keep := s.config.Keep
	if keep <= 0 {
		keep = 7
	}

	entries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		return 0, err
	}

	var snapshots []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".db") {
			snapshots = append(snapshots, name)
		}
	}
	if len(snapshots) <= keep {
		return 0, nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(snapshots)

	pruned := 0
	for _, name := range snapshots[:len(snapshots)-keep] {
		if err := os.Remove(filepath.Join(s.config.Dir, name)); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// List returns snapshot paths, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snapshots []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".db") {
			snapshots = append(snapshots, filepath.Join(s.config.Dir, name))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(snapshots)))
	return snapshots, nil
}
