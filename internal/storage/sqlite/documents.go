// ABOUTME: DocumentStore implements storage.Store on the documents table
// ABOUTME: Supports merge writes, json_extract ordered queries, batches and immediate transactions
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harper/companion/internal/storage"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

var filterOps = map[string]string{
	"==": "=",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DocumentStore is a path-addressed JSON document store
type DocumentStore struct {
	db  *DB
	now func() time.Time
}

var _ storage.Store = (*DocumentStore)(nil)

// NewDocumentStore creates a store over an open database
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db, now: time.Now}
}

// NewStoreWithPath opens a file-backed store
func NewStoreWithPath(dbPath string) (*DocumentStore, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewDocumentStore(db), nil
}

// NewStoreInMemory creates an in-memory store (for testing)
func NewStoreInMemory() (*DocumentStore, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return NewDocumentStore(db), nil
}

// Close closes the database connection
func (s *DocumentStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get reads one document. A missing document is not an error.
func (s *DocumentStore) Get(ctx context.Context, path string) (*storage.Document, error) {
	return getDocument(ctx, s.db.conn, path)
}

// Set writes one document, replacing it unless merge is set
func (s *DocumentStore) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if !merge {
		return setDocument(ctx, s.db.conn, path, data, false, s.now())
	}
	return s.RunTransaction(ctx, func(tx storage.Tx) error {
		return tx.Set(path, data, true)
	})
}

// Delete removes one document. Deleting a missing document succeeds.
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	return deleteDocument(ctx, s.db.conn, path)
}

// Query lists documents of one collection
func (s *DocumentStore) Query(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	if !storage.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("invalid collection path %q", q.Collection)
	}

	var sb strings.Builder
	args := []any{strings.Trim(q.Collection, "/")}
	sb.WriteString("SELECT path, doc_id, data FROM documents WHERE collection = ?")

	for _, f := range q.Where {
		op, ok := filterOps[f.Op]
		if !ok {
			return nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if !fieldPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		value, err := sqlValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid filter value for %s: %w", f.Field, err)
		}
		if value == nil {
			switch op {
			case "=":
				fmt.Fprintf(&sb, " AND json_extract(data, '$.%s') IS NULL", f.Field)
			case "!=":
				fmt.Fprintf(&sb, " AND json_extract(data, '$.%s') IS NOT NULL", f.Field)
			default:
				return nil, fmt.Errorf("operator %q cannot compare with null", f.Op)
			}
			continue
		}
		fmt.Fprintf(&sb, " AND json_extract(data, '$.%s') %s ?", f.Field, op)
		args = append(args, value)
	}

	if q.OrderBy != "" {
		if !fieldPattern.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY json_extract(data, '$.%s') %s, doc_id %s", q.OrderBy, dir, dir)
	} else {
		sb.WriteString(" ORDER BY doc_id ASC")
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []storage.Document
	for rows.Next() {
		var path, id, raw string
		if err := rows.Scan(&path, &id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		docs = append(docs, storage.Document{ID: id, Path: path, Exists: true, Data: data})
	}
	return docs, rows.Err()
}

// RunTransaction runs fn inside one immediate transaction. Any error from fn
// rolls back every write fn made.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &docTx{ctx: ctx, tx: sqlTx, now: s.now()}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrTransactionConflict, err)
	}
	return nil
}

// Batch starts an empty write batch
func (s *DocumentStore) Batch() storage.Batch {
	return &docBatch{store: s}
}

type docTx struct {
	ctx context.Context
	tx  *sql.Tx
	now time.Time
}

func (t *docTx) Get(path string) (*storage.Document, error) {
	return getDocument(t.ctx, t.tx, path)
}

func (t *docTx) Set(path string, data map[string]any, merge bool) error {
	return setDocument(t.ctx, t.tx, path, data, merge, t.now)
}

func (t *docTx) Delete(path string) error {
	return deleteDocument(t.ctx, t.tx, path)
}

type batchOp struct {
	path   string
	data   map[string]any
	merge  bool
	delete bool
}

type docBatch struct {
	store *DocumentStore
	ops   []batchOp
}

func (b *docBatch) Set(path string, data map[string]any, merge bool) {
	b.ops = append(b.ops, batchOp{path: path, data: data, merge: merge})
}

func (b *docBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{path: path, delete: true})
}

func (b *docBatch) Len() int {
	return len(b.ops)
}

// Commit applies every queued write in one transaction
func (b *docBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.store.RunTransaction(ctx, func(tx storage.Tx) error {
		for _, op := range b.ops {
			if op.delete {
				if err := tx.Delete(op.path); err != nil {
					return err
				}
				continue
			}
			if err := tx.Set(op.path, op.data, op.merge); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d writes: %w", len(b.ops), err)
	}
	b.ops = nil
	return nil
}

func getDocument(ctx context.Context, q querier, path string) (*storage.Document, error) {
	_, id, err := storage.SplitPath(path)
	if err != nil {
		return nil, err
	}
	path = strings.Trim(path, "/")

	var raw string
	err = q.QueryRowContext(ctx, "SELECT data FROM documents WHERE path = ?", path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &storage.Document{ID: id, Path: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}

	data, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &storage.Document{ID: id, Path: path, Exists: true, Data: data}, nil
}

func setDocument(ctx context.Context, q querier, path string, data map[string]any, merge bool, now time.Time) error {
	collection, id, err := storage.SplitPath(path)
	if err != nil {
		return err
	}
	path = strings.Trim(path, "/")

	if merge {
		existing, err := getDocument(ctx, q, path)
		if err != nil {
			return err
		}
		if existing.Exists {
			data = storage.MergeFields(existing.Data, data)
		}
	}
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	ts := now.UnixMilli()
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (path, collection, doc_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, path, collection, id, string(raw), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

func deleteDocument(ctx context.Context, q querier, path string) error {
	if _, _, err := storage.SplitPath(path); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM documents WHERE path = ?", strings.Trim(path, "/")); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// sqlValue converts a filter value into what json_extract yields for it
func sqlValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string, int, int32, int64, float32, float64:
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
