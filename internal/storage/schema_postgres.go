package storage

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS listings (
	id BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	keyword TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	company TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	salary TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	posted_date BIGINT,
	first_seen BIGINT NOT NULL,
	builder_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	fixer_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	operator_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	translator_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	primary_archetype TEXT NOT NULL DEFAULT '',
	job_type TEXT NOT NULL DEFAULT '',
	seniority TEXT NOT NULL DEFAULT '',
	tech_tags TEXT NOT NULL DEFAULT '[]',
	embedding BYTEA,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedding_dim INTEGER NOT NULL DEFAULT 0,
	classified BOOLEAN NOT NULL DEFAULT FALSE,
	intelligence_only BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE(source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_listings_primary_seen ON listings(primary_archetype, first_seen);
CREATE INDEX IF NOT EXISTS idx_listings_classified ON listings(classified);

CREATE TABLE IF NOT EXISTS applications (
	id BIGSERIAL PRIMARY KEY,
	listing_id BIGINT NOT NULL UNIQUE REFERENCES listings(id),
	batch_id TEXT NOT NULL DEFAULT '',
	archetype TEXT NOT NULL DEFAULT '',
	resume_version TEXT NOT NULL DEFAULT '',
	applied_at BIGINT NOT NULL,
	outcome_stage TEXT NOT NULL DEFAULT 'submitted',
	outcome_at BIGINT,
	selection_rationale TEXT NOT NULL DEFAULT '',
	last_error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_applications_batch ON applications(batch_id);
CREATE INDEX IF NOT EXISTS idx_applications_stage ON applications(outcome_stage);

CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	archetype TEXT NOT NULL,
	profile_state TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	started_at BIGINT NOT NULL,
	completed_at BIGINT,
	application_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS batch_lock (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	open_batch_id TEXT
);

INSERT INTO batch_lock (id, open_batch_id)
	SELECT 1, NULL
	WHERE NOT EXISTS (SELECT 1 FROM batch_lock WHERE id = 1);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	external_message_id TEXT NOT NULL,
	source TEXT NOT NULL,
	sender TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	received_at BIGINT NOT NULL,
	sender_class TEXT NOT NULL DEFAULT 'unknown',
	application_id BIGINT REFERENCES applications(id),
	match_method TEXT NOT NULL DEFAULT 'unmatched',
	match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL DEFAULT '',
	outcome_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	requires_manual_review BOOLEAN NOT NULL DEFAULT FALSE,
	candidates TEXT NOT NULL DEFAULT '[]',
	UNIQUE(source, external_message_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_review ON messages(requires_manual_review);

CREATE TABLE IF NOT EXISTS known_senders (
	id BIGSERIAL PRIMARY KEY,
	address TEXT NOT NULL UNIQUE,
	entity TEXT NOT NULL DEFAULT '',
	class TEXT NOT NULL DEFAULT 'unknown',
	first_seen BIGINT NOT NULL,
	last_seen BIGINT NOT NULL,
	match_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sender_ignore (
	pattern TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS call_logs (
	id BIGSERIAL PRIMARY KEY,
	caller_number TEXT NOT NULL DEFAULT '',
	caller_name TEXT NOT NULL DEFAULT '',
	entity TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	occurred_at BIGINT NOT NULL,
	application_id BIGINT REFERENCES applications(id),
	outcome TEXT NOT NULL DEFAULT '',
	requires_manual_review BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS resume_variants (
	archetype TEXT PRIMARY KEY,
	file_path TEXT NOT NULL DEFAULT '',
	current_version TEXT NOT NULL DEFAULT '',
	embedding BYTEA,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedding_dim INTEGER NOT NULL DEFAULT 0,
	alignment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_rewritten BIGINT,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_centroids (
	id BIGSERIAL PRIMARY KEY,
	archetype TEXT NOT NULL,
	window_start BIGINT NOT NULL,
	window_end BIGINT NOT NULL,
	centroid BYTEA NOT NULL,
	embedding_model TEXT NOT NULL DEFAULT '',
	embedding_dim INTEGER NOT NULL DEFAULT 0,
	jd_count INTEGER NOT NULL DEFAULT 0,
	shift_from_previous DOUBLE PRECISION NOT NULL DEFAULT 0,
	top_gained_terms TEXT NOT NULL DEFAULT '[]',
	top_lost_terms TEXT NOT NULL DEFAULT '[]',
	created_at BIGINT NOT NULL,
	UNIQUE(archetype, window_start)
);

CREATE TABLE IF NOT EXISTS drift_alerts (
	id TEXT PRIMARY KEY,
	archetype TEXT NOT NULL,
	alert_type TEXT NOT NULL,
	metric_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	threshold_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	details TEXT NOT NULL DEFAULT '',
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_open ON drift_alerts(archetype, alert_type, acknowledged);

CREATE TABLE IF NOT EXISTS sync_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT '',
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS job_settings (
	job_name TEXT PRIMARY KEY,
	schedule TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	last_run BIGINT,
	updated_at BIGINT NOT NULL
);
`
