// ABOUTME: SQLite database schema for the document store
// ABOUTME: One table keyed by document path with JSON payloads
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Documents keyed by full path; collection is the path without the last segment
CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    collection TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    data TEXT NOT NULL CHECK (json_valid(data)),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
CREATE INDEX IF NOT EXISTS idx_documents_collection_updated
    ON documents(collection, json_extract(data, '$.updatedAt'));
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2
