// Package store persists analysis records.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Store is an ordered table of analysis records.
type Store interface {
	// Append adds rec at the end, creating the table when it does not exist.
	Append(ctx context.Context, rec models.Record) error
	// ListAll returns every record in insertion order.
	ListAll(ctx context.Context) ([]models.Record, error)
	// Delete removes the records with the given id and reports whether any matched.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteAll removes the whole table.
	DeleteAll(ctx context.Context) error
	// Exists reports whether the backing table is present.
	Exists(ctx context.Context) (bool, error)
	// MigrateMissingIdentifier assigns an id to every record without one.
	MigrateMissingIdentifier(ctx context.Context) (int, error)
	Close() error
}

// DataCorruptionError reports a persisted table that cannot be parsed.
type DataCorruptionError struct {
	Source string
	Err    error
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("stored results in %s are corrupted: %v", e.Source, e.Err)
}

func (e *DataCorruptionError) Unwrap() error {
	return e.Err
}

// IsCorrupted reports whether err carries a DataCorruptionError.
func IsCorrupted(err error) bool {
	var dce *DataCorruptionError
	return errors.As(err, &dce)
}

// NewID generates a record identifier.
func NewID() string {
	return uuid.NewV4().String()
}

// Open returns the store selected by dsn, or a CSV store at path when dsn is empty.
func Open(path, dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return NewCSVStore(path)
	}
	return NewSQLStore(dsn)
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLStore)(nil)
)
