package store

// Schema creates every table. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
	external_id         TEXT PRIMARY KEY,
	source_handle       TEXT NOT NULL,
	content             TEXT NOT NULL,
	url                 TEXT NOT NULL,
	created_at_upstream TEXT,
	is_match            INTEGER NOT NULL DEFAULT 0,
	category            TEXT NOT NULL DEFAULT 'Other',
	confidence          REAL NOT NULL DEFAULT 0,
	reasoning           TEXT NOT NULL DEFAULT '',
	ingested_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_ingested ON items(ingested_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category);

CREATE TABLE IF NOT EXISTS sources (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	handle            TEXT NOT NULL UNIQUE COLLATE NOCASE,
	user_id           TEXT NOT NULL DEFAULT '',
	display_name      TEXT NOT NULL DEFAULT '',
	is_active         INTEGER NOT NULL DEFAULT 1,
	priority          TEXT NOT NULL DEFAULT 'normal',
	last_scan_at      TEXT,
	last_seen_item_id TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS monthly_usage (
	key        TEXT PRIMARY KEY,
	used       INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    TEXT,
	created_at TEXT NOT NULL
);
`
