// Package store persists coordinate records, lookup results and the audit log.
package store

import (
	"context"
	"time"

	"github.com/AldinMesan/ParcelsScript/internal/model"
)

// Store defines the persistence interface for the parcel scraper.
type Store interface {
	// Coordinates
	ImportCoordinates(ctx context.Context, coords []model.Coordinate) (int64, error)
	LoadPending(ctx context.Context, limit int) ([]model.Coordinate, error)
	// MarkProcessing claims a TODO row. It returns false when the row was
	// not TODO, so a record is never claimed twice.
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	MarkDone(ctx context.Context, id int64) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)

	// Results
	StoreResult(ctx context.Context, originID int64, data, logMsg string) (int64, error)
	// Complete stores the result and marks the origin DONE in one transaction.
	Complete(ctx context.Context, originID int64, data, logMsg string) (int64, error)
	ListResults(ctx context.Context) ([]model.Result, error)
	ListLogs(ctx context.Context, limit int) ([]model.LogEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Options holds settings shared by both drivers.
type Options struct {
	// LogLocation renders audit log timestamps. Defaults to time.Local.
	LogLocation *time.Location
	// MaxConns caps the Postgres pool. Ignored by SQLite.
	MaxConns int32
}

func (o Options) location() *time.Location {
	if o.LogLocation == nil {
		return time.Local
	}
	return o.LogLocation
}
