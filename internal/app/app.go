package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
	"github.com/wmarzella/ronin/internal/services/backup"
	"github.com/wmarzella/ronin/internal/services/batch"
	"github.com/wmarzella/ronin/internal/services/classifier"
	"github.com/wmarzella/ronin/internal/services/drift"
	"github.com/wmarzella/ronin/internal/services/embeddings"
	"github.com/wmarzella/ronin/internal/services/inbox"
	"github.com/wmarzella/ronin/internal/services/intake"
	"github.com/wmarzella/ronin/internal/services/outcomes"
	"github.com/wmarzella/ronin/internal/services/scheduler"
	"github.com/wmarzella/ronin/internal/services/selector"
	"github.com/wmarzella/ronin/internal/services/variants"
	"github.com/wmarzella/ronin/internal/storage"
	"github.com/wmarzella/ronin/internal/storage/spool"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *storage.Manager
	Spool          *spool.Spool

	EmbeddingService  interfaces.EmbeddingService
	ClassifierService *classifier.Service
	Selector          *selector.Selector
	OutcomeService    *outcomes.Service
	DriftEngine       *drift.Engine
	Coordinator       *batch.Coordinator
	VariantService    *variants.Service
	BackupService     *backup.Service
	InboxPoller       *inbox.Poller
	SchedulerService  interfaces.SchedulerService
	IntakeServer      *intake.Server
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	manager, err := storage.NewManager(&cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	app.StorageManager = manager

	// The spool only matters for the server engine, where the store can
	// be unreachable. The embedded engine never needs it.
	if cfg.Store.Engine == "postgres" && cfg.Store.Spool.Path != "" {
		sp, err := spool.New(logger, cfg.Store.Spool.Path)
		if err != nil {
			manager.Close()
			return nil, fmt.Errorf("failed to initialize spool: %w", err)
		}
		app.Spool = sp
	}

	embedder, err := embeddings.NewService(ctx, &cfg.Embedding, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize embedding service: %w", err)
	}
	app.EmbeddingService = embedder

	app.ClassifierService = classifier.NewService(manager, embedder, logger)
	app.Selector = selector.New(manager, &cfg.Selector, logger)
	app.OutcomeService = outcomes.NewService(manager, &cfg.Matcher, logger)
	app.DriftEngine = drift.NewEngine(manager, embedder, &cfg.Drift, logger)
	app.Coordinator = batch.NewCoordinator(manager, app.Selector, batch.NewManualSubmitter(logger), app.Spool, logger)
	app.VariantService = variants.NewService(cfg.Variants.Dir, manager, embedder, logger)
	app.BackupService = backup.NewService(manager.DB(), &cfg.Store.Backup, logger)
	app.InboxPoller = inbox.NewPoller(&cfg.Inbox, manager, app.OutcomeService, app.Spool, logger)
	app.SchedulerService = scheduler.NewService(manager.DB(), logger)

	if cfg.Intake.Enabled {
		app.IntakeServer = intake.NewServer(&cfg.Intake, app.OutcomeService, logger)
	}

	if err := app.registerJobs(); err != nil {
		app.Close()
		return nil, err
	}

	logger.Info().
		Str("engine", cfg.Store.Engine).
		Str("embedding_model", embedder.ModelName()).
		Msg("Application initialized")
	return app, nil
}

// registerJobs wires the recurring jobs onto the scheduler.
func (a *App) registerJobs() error {
	if a.InboxPoller.Configured() {
		if err := a.SchedulerService.RegisterJob(
			"inbox-poll",
			a.Config.Inbox.PollSchedule,
			"Poll the IMAP inbox for recruiter email",
			func() error {
				_, err := a.InboxPoller.Poll(context.Background())
				return err
			},
		); err != nil {
			return err
		}
	} else {
		a.Logger.Info().Msg("Inbox polling disabled: no IMAP credentials configured")
	}

	if err := a.SchedulerService.RegisterJob(
		"market-drift",
		a.Config.Drift.Schedule,
		"Recompute market centroids, refresh alignments and check rewrite triggers",
		func() error {
			ctx := context.Background()
			if err := a.DriftEngine.Run(ctx, time.Now().UTC()); err != nil {
				return err
			}
			ghostAfter := time.Duration(a.Config.Drift.GhostAfterDays) * 24 * time.Hour
			_, err := a.OutcomeService.MarkGhosted(ctx, ghostAfter)
			return err
		},
	); err != nil {
		return err
	}

	if err := a.SchedulerService.RegisterJob(
		"classification-sweep",
		"*/30 * * * *",
		"Classify listings that arrived without a classification",
		func() error {
			_, err := a.ClassifierService.ClassifyPending(context.Background(), 200)
			return err
		},
	); err != nil {
		return err
	}

	return a.SchedulerService.RegisterJob(
		"store-backup",
		a.Config.Store.Backup.Schedule,
		"Snapshot the embedded store",
		func() error {
			_, err := a.BackupService.Run(context.Background())
			return err
		},
	)
}

// Start brings up the background machinery: spool recovery, variant
// sync, the scheduler and the optional intake listener.
func (a *App) Start(ctx context.Context) error {
	if err := a.FlushSpool(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Spool flush failed, entries retained")
	}

	if _, err := a.VariantService.Sync(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Resume variant sync failed")
	}

	if a.Config.Scheduler.Enabled {
		if err := a.SchedulerService.Start(); err != nil {
			return err
		}
	}

	if a.IntakeServer != nil {
		go func() {
			if err := a.IntakeServer.Start(); err != nil {
				a.Logger.Error().Err(err).Msg("Intake listener failed")
			}
		}()
	}
	return nil
}

// Stop shuts down background machinery in reverse order.
func (a *App) Stop(ctx context.Context) error {
	if a.IntakeServer != nil {
		if err := a.IntakeServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Intake shutdown failed")
		}
	}
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			return err
		}
	}
	return nil
}

// FlushSpool replays spooled writes into the store. A no-op when no
// spool is configured or nothing is pending.
func (a *App) FlushSpool(ctx context.Context) error {
	if a.Spool == nil {
		return nil
	}
	applied, err := a.Spool.Flush(ctx, a.StorageManager)
	if err != nil {
		return err
	}
	if applied > 0 {
		a.Logger.Info().Int("applied", applied).Msg("Spooled writes replayed into store")
		if err := a.StorageManager.SyncState().SetState(ctx, "spool_last_flush", time.Now().UTC().Format(time.RFC3339)); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to record spool flush watermark")
		}
	}
	return nil
}

// Close releases all resources.
func (a *App) Close() {
	if a.Spool != nil {
		if err := a.Spool.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close spool")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}
