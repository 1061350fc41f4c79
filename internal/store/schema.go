package store

import "database/sql"

// Schema holds stored documents and their change history. Bodies are
// MessagePack-encoded documents or change logs.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    text_hash   TEXT NOT NULL DEFAULT '',
    offset_type TEXT NOT NULL,
    body        BLOB NOT NULL,
    revision    INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at DESC);

CREATE TABLE IF NOT EXISTS changes (
    doc_id     TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    revision   INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    body       BLOB,
    applied_at INTEGER NOT NULL,
    PRIMARY KEY (doc_id, revision)
);
`

// ApplySchema creates the tables if they do not exist.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
