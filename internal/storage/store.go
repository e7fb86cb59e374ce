// ABOUTME: Document store contract used by the conversation core
// ABOUTME: Path-addressed JSON documents with merge writes, ordered queries, batches and transactions
package storage

import (
	"context"
	"errors"
)

// ErrTransactionConflict is returned when a transaction could not be committed
var ErrTransactionConflict = errors.New("transaction conflict")

// Document is one stored record. Exists is false when nothing is stored at Path.
type Document struct {
	ID     string
	Path   string
	Exists bool
	Data   map[string]any
}

// Filter restricts a query to documents whose field compares to Value.
// Supported operators: ==, !=, <, <=, >, >=.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query selects documents from one collection
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Batch accumulates writes that commit together or not at all
type Batch interface {
	Set(path string, data map[string]any, merge bool)
	Delete(path string)
	Len() int
	Commit(ctx context.Context) error
}

// Tx is the view of the store inside RunTransaction
type Tx interface {
	Get(path string) (*Document, error)
	Set(path string, data map[string]any, merge bool) error
	Delete(path string) error
}

// Store is a document database. Set without merge replaces the document;
// with merge it overwrites only the supplied top-level fields.
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, data map[string]any, merge bool) error
	Delete(ctx context.Context, path string) error
	Query(ctx context.Context, q Query) ([]Document, error)
	Batch() Batch
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
