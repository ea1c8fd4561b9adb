package sqlite

// Schema defines the SQLite schema for the attribute index and the
// observation audit trail.
//
// entity_index is the resolution engine's only data source. The unique
// constraint on (attr_type, attr_value, entity_id) makes Insert idempotent
// under concurrent execution, and idx_entity_index_value serves the
// value-only candidate lookup.
//
// sources / observations / observation_attributes are provenance: present in
// the schema, written by the pipeline, never read during scoring.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
    id          TEXT PRIMARY KEY,
    filename    TEXT NOT NULL DEFAULT '',
    imported_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS observations (
    hash       TEXT PRIMARY KEY,
    source_id  TEXT,
    entity_id  TEXT NOT NULL,
    raw_data   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE TABLE IF NOT EXISTS observation_attributes (
    obs_hash   TEXT NOT NULL,
    attr_type  TEXT NOT NULL,
    attr_value TEXT NOT NULL,
    FOREIGN KEY(obs_hash) REFERENCES observations(hash)
);

CREATE TABLE IF NOT EXISTS entity_index (
    attr_type  TEXT NOT NULL,
    attr_value TEXT NOT NULL,
    entity_id  TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(attr_type, attr_value, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_index_value ON entity_index(attr_value);
CREATE INDEX IF NOT EXISTS idx_observation_attrs_hash ON observation_attributes(obs_hash);
`
