package common

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Store       StoreConfig     `toml:"store"`
	Logging     LoggingConfig   `toml:"logging"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	Inbox       InboxConfig     `toml:"inbox"`
	Drift       DriftConfig     `toml:"drift"`
	Selector    SelectorConfig  `toml:"selector"`
	Matcher     MatcherConfig   `toml:"matcher"`
	Variants    VariantsConfig  `toml:"variants"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Intake      IntakeConfig    `toml:"intake"`
}

// StoreConfig selects and configures the storage engine
type StoreConfig struct {
	Engine   string         `toml:"engine" validate:"oneof=sqlite postgres"` // "sqlite" (embedded) or "postgres" (server)
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Postgres PostgresConfig `toml:"postgres"`
	Spool    SpoolConfig    `toml:"spool"`
	Backup   BackupConfig   `toml:"backup"`
}

type SQLiteConfig struct {
	Path          string `toml:"path" validate:"required"`
	CacheSizeMB   int    `toml:"cache_size_mb"`
	WALMode       bool   `toml:"wal_mode"`
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn"` // e.g. "postgres://ronin@localhost:5432/ronin"
}

// SpoolConfig configures the local fallback used when the postgres engine
// is unreachable. The spool is always sqlite.
type SpoolConfig struct {
	Path string `toml:"path"`
}

type BackupConfig struct {
	Dir      string `toml:"dir"`      // Snapshot destination directory
	Keep     int    `toml:"keep"`     // Snapshots retained (oldest pruned first)
	Schedule string `toml:"schedule"` // Cron schedule
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=debug info warn error"`
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// EmbeddingConfig configures the embedding provider. When no API key is
// present the deterministic local fallback is used instead.
type EmbeddingConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Dimension int    `toml:"dimension" validate:"gt=0"`
	RateLimit string `toml:"rate_limit"` // Minimum interval between API calls, e.g. "4s"
}

type InboxConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	Folder       string `toml:"folder"`
	PollSchedule string `toml:"poll_schedule"` // Cron schedule for inbox polling
	LookbackDays int    `toml:"lookback_days"` // Only fetch messages newer than this
}

// DriftConfig carries the centroid and rewrite-trigger tuning knobs.
type DriftConfig struct {
	WindowDays          int     `toml:"window_days" validate:"gt=0"`
	MinWindowJDCount    int     `toml:"min_window_jd_count" validate:"gt=0"`
	ShiftThreshold      float64 `toml:"shift_threshold" validate:"gt=0"`
	StalenessThreshold  float64 `toml:"staleness_threshold" validate:"gt=0"`
	RewriteCooldownDays int     `toml:"rewrite_cooldown_days" validate:"gt=0"`
	GhostAfterDays      int     `toml:"ghost_after_days"`
	Schedule            string  `toml:"schedule"` // Cron schedule for the weekly drift job
}

type SelectorConfig struct {
	CloseCallDelta         float64 `toml:"close_call_delta" validate:"gte=0"`
	CombinedScoreThreshold float64 `toml:"combined_score_threshold" validate:"gte=0"`
}

type MatcherConfig struct {
	AutoConfidence float64 `toml:"match_auto_confidence" validate:"gt=0,lte=1"`
}

type VariantsConfig struct {
	Dir string `toml:"dir"` // Directory holding one resume file per archetype
}

type SchedulerConfig struct {
	Enabled bool `toml:"enabled"`
}

// IntakeConfig configures the phone-call intake HTTP listener.
type IntakeConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
}

// NewDefaultConfig creates a configuration with default values.
// Threshold defaults mirror the tuned production values; only user-facing
// settings should need overriding in ronin.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Store: StoreConfig{
			Engine: "sqlite",
			SQLite: SQLiteConfig{
				Path:          "./data/ronin.db",
				CacheSizeMB:   32,
				WALMode:       true,
				BusyTimeoutMS: 5000,
			},
			Spool: SpoolConfig{
				Path: "./data/spool.db",
			},
			Backup: BackupConfig{
				Dir:      "./data/backups",
				Keep:     7,
				Schedule: "0 3 * * *", // Daily at 03:00
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Embedding: EmbeddingConfig{
			Model:     "gemini-embedding-001",
			Dimension: 768,
			RateLimit: "4s",
		},
		Inbox: InboxConfig{
			Port:         993,
			Folder:       "INBOX",
			PollSchedule: "*/15 * * * *", // Every 15 minutes
			LookbackDays: 1,
		},
		Drift: DriftConfig{
			WindowDays:          30,
			MinWindowJDCount:    5,
			ShiftThreshold:      0.05,
			StalenessThreshold:  0.08,
			RewriteCooldownDays: 21,
			GhostAfterDays:      21,
			Schedule:            "0 6 * * 1", // Weekly, Monday 06:00
		},
		Selector: SelectorConfig{
			CloseCallDelta:         0.10,
			CombinedScoreThreshold: 0.15,
		},
		Matcher: MatcherConfig{
			AutoConfidence: 0.5,
		},
		Variants: VariantsConfig{
			Dir: "./resumes",
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
		},
		Intake: IntakeConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    8391,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2
// -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks structural constraints on the loaded configuration.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if c.Store.Engine == "postgres" && c.Store.Postgres.DSN == "" {
		return ValidationError("store.postgres.dsn", "is required when engine is postgres")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RONIN_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Store configuration
	if engine := os.Getenv("RONIN_STORE_ENGINE"); engine != "" {
		config.Store.Engine = engine
	}
	if path := os.Getenv("RONIN_SQLITE_PATH"); path != "" {
		config.Store.SQLite.Path = path
	}
	if dsn := os.Getenv("RONIN_POSTGRES_DSN"); dsn != "" {
		config.Store.Postgres.DSN = dsn
	}
	if path := os.Getenv("RONIN_SPOOL_PATH"); path != "" {
		config.Store.Spool.Path = path
	}

	// Logging configuration
	if level := os.Getenv("RONIN_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Embedding configuration
	if apiKey := os.Getenv("RONIN_GEMINI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}
	if model := os.Getenv("RONIN_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if dim := os.Getenv("RONIN_EMBEDDING_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Embedding.Dimension = d
		}
	}

	// Inbox configuration
	if host := os.Getenv("RONIN_IMAP_HOST"); host != "" {
		config.Inbox.Host = host
	}
	if port := os.Getenv("RONIN_IMAP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Inbox.Port = p
		}
	}
	if user := os.Getenv("RONIN_IMAP_USERNAME"); user != "" {
		config.Inbox.Username = user
	}
	if pass := os.Getenv("RONIN_IMAP_PASSWORD"); pass != "" {
		config.Inbox.Password = pass
	}

	// Drift tuning
	if v := os.Getenv("RONIN_SHIFT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Drift.ShiftThreshold = f
		}
	}
	if v := os.Getenv("RONIN_STALENESS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Drift.StalenessThreshold = f
		}
	}
	if v := os.Getenv("RONIN_REWRITE_COOLDOWN_DAYS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			config.Drift.RewriteCooldownDays = d
		}
	}

	// Variants configuration
	if dir := os.Getenv("RONIN_VARIANTS_DIR"); dir != "" {
		config.Variants.Dir = dir
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
