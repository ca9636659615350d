package db

// Schema is the DDL for the mailpurge history database.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    sender          TEXT NOT NULL,
    query           TEXT NOT NULL,
    estimate        INTEGER NOT NULL DEFAULT 0,
    max_results     INTEGER NOT NULL DEFAULT 0,
    found           INTEGER NOT NULL DEFAULT 0,
    deleted         INTEGER NOT NULL DEFAULT 0,
    failed_batches  INTEGER NOT NULL DEFAULT 0,
    elapsed_ms      INTEGER NOT NULL DEFAULT 0,
    started_at      TEXT NOT NULL,
    finished_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_sender ON runs(sender);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`
