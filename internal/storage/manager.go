package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
)

// Manager aggregates the per-entity storages over one engine.
type Manager struct {
	db *DB

	listings     interfaces.ListingStorage
	applications interfaces.ApplicationStorage
	batches      interfaces.BatchStorage
	messages     interfaces.MessageStorage
	senders      interfaces.SenderStorage
	calls        interfaces.CallStorage
	variants     interfaces.VariantStorage
	centroids    interfaces.CentroidStorage
	alerts       interfaces.AlertStorage
	syncState    interfaces.SyncStateStorage

	logger arbor.ILogger
}

// NewManager builds a storage manager for the engine named in config.
func NewManager(config *common.StoreConfig, logger arbor.ILogger) (*Manager, error) {
	var db *DB
	var err error

	switch config.Engine {
	case "sqlite":
		db, err = NewSQLiteDB(logger, &config.SQLite)
	case "postgres":
		db, err = NewPostgresDB(logger, &config.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %s", config.Engine)
	}
	if err != nil {
		return nil, err
	}

	return NewManagerWithDB(db, logger), nil
}

// NewManagerWithDB wraps an already-opened engine.
func NewManagerWithDB(db *DB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:           db,
		listings:     NewListingStorage(db, logger),
		applications: NewApplicationStorage(db, logger),
		batches:      NewBatchStorage(db, logger),
		messages:     NewMessageStorage(db, logger),
		senders:      NewSenderStorage(db, logger),
		calls:        NewCallStorage(db, logger),
		variants:     NewVariantStorage(db, logger),
		centroids:    NewCentroidStorage(db, logger),
		alerts:       NewAlertStorage(db, logger),
		syncState:    NewSyncStateStorage(db, logger),
		logger:       logger,
	}
}

// DB exposes the underlying engine, used by the scheduler for job
// settings persistence and by the backup job.
func (m *Manager) DB() *DB {
	return m.db
}

func (m *Manager) Listings() interfaces.ListingStorage         { return m.listings }
func (m *Manager) Applications() interfaces.ApplicationStorage { return m.applications }
func (m *Manager) Batches() interfaces.BatchStorage            { return m.batches }
func (m *Manager) Messages() interfaces.MessageStorage         { return m.messages }
func (m *Manager) Senders() interfaces.SenderStorage           { return m.senders }
func (m *Manager) Calls() interfaces.CallStorage               { return m.calls }
func (m *Manager) Variants() interfaces.VariantStorage         { return m.variants }
func (m *Manager) Centroids() interfaces.CentroidStorage       { return m.centroids }
func (m *Manager) Alerts() interfaces.AlertStorage             { return m.alerts }
func (m *Manager) SyncState() interfaces.SyncStateStorage      { return m.syncState }

func (m *Manager) Ping(ctx context.Context) error {
	return m.db.Ping(ctx)
}

func (m *Manager) Close() error {
	return m.db.Close()
}
