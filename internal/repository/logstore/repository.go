package logstore

import (
	"context"
	"time"

	"github.com/oshokin/home-security/internal/domain/detection"
)

// Repository defines the log store operations used by the services.
type Repository interface {
	// Insert adds one record to the active log. A record whose ID is already
	// stored is ignored.
	Insert(ctx context.Context, record detection.Record) error
	// InsertMany adds records to the active log in one transaction.
	InsertMany(ctx context.Context, records []detection.Record) error
	// CountActive returns the number of records in the active log.
	CountActive(ctx context.Context) (int64, error)
	// CountArchived returns the number of records in the archive log.
	CountArchived(ctx context.Context) (int64, error)
	// ListActive returns active records ordered by timestamp.
	ListActive(ctx context.Context) ([]detection.Record, error)
	// ArchiveBefore moves active records older than cutoff into the archive
	// and returns how many were moved.
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// ResetActive deletes every active record and returns how many were deleted.
	ResetActive(ctx context.Context) (int64, error)
	// Close releases the store.
	Close() error
}
