package postgres

// Schema defines the PostgreSQL schema for the attribute index and the
// observation audit trail. All statements are idempotent so the schema can
// be re-applied on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
    id          TEXT PRIMARY KEY,
    filename    TEXT NOT NULL DEFAULT '',
    imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS observations (
    hash       TEXT PRIMARY KEY,
    source_id  TEXT REFERENCES sources(id),
    entity_id  TEXT NOT NULL,
    raw_data   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS observation_attributes (
    obs_hash   TEXT NOT NULL REFERENCES observations(hash),
    attr_type  TEXT NOT NULL,
    attr_value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_index (
    attr_type  TEXT NOT NULL,
    attr_value TEXT NOT NULL,
    entity_id  TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (attr_type, attr_value, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_index_value ON entity_index (attr_value);
CREATE INDEX IF NOT EXISTS idx_observation_attrs_hash ON observation_attributes (obs_hash);
`
