package database

// schemas maps database names to their full schema. Applied by Migrate().
var schemas = map[string]string{
	"clientdata": clientDataSchema,
	"history":    historySchema,
}

// clientDataSchema backs the persistent TTL cache for upstream API responses.
// One table per source type; every table has the same shape so the cache
// repository can treat them uniformly.
const clientDataSchema = `
CREATE TABLE IF NOT EXISTS appstore_search (
    cache_key  TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    hits       INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS appstore_hints (
    cache_key  TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    hits       INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trends (
    cache_key  TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    hits       INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS community (
    cache_key  TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    hits       INTEGER NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_appstore_search_expires ON appstore_search(expires_at);
CREATE INDEX IF NOT EXISTS idx_appstore_hints_expires ON appstore_hints(expires_at);
CREATE INDEX IF NOT EXISTS idx_trends_expires ON trends(expires_at);
CREATE INDEX IF NOT EXISTS idx_community_expires ON community(expires_at);
`

// historySchema stores every opportunity score ever produced, with the raw
// signal snapshot retained as a msgpack blob for auditability.
const historySchema = `
CREATE TABLE IF NOT EXISTS opportunity_scores (
    id                TEXT PRIMARY KEY,
    keyword           TEXT NOT NULL,
    category          TEXT NOT NULL DEFAULT '',
    country           TEXT NOT NULL,
    opportunity_score REAL NOT NULL,
    result_json       TEXT NOT NULL,
    snapshot          BLOB NOT NULL,
    scored_at         INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_keyword ON opportunity_scores(keyword, country);
CREATE INDEX IF NOT EXISTS idx_scores_score ON opportunity_scores(opportunity_score DESC);
CREATE INDEX IF NOT EXISTS idx_scores_time ON opportunity_scores(scored_at DESC);
`
