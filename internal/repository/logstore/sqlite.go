package logstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oshokin/home-security/internal/domain/detection"
	"github.com/oshokin/home-security/internal/logger"
	"github.com/oshokin/home-security/internal/repository/sqlitepool"
)

// schema creates both collections. Timestamps are Unix nanoseconds.
const schema = `
	CREATE TABLE IF NOT EXISTS active_log (
		id           TEXT PRIMARY KEY,
		object       TEXT NOT NULL,
		confidence   REAL NOT NULL,
		timestamp_ns INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_active_log_time ON active_log(timestamp_ns);

	CREATE TABLE IF NOT EXISTS archive_log (
		id           TEXT PRIMARY KEY,
		object       TEXT NOT NULL,
		confidence   REAL NOT NULL,
		timestamp_ns INTEGER NOT NULL,
		archived_ns  INTEGER NOT NULL
	);
`

const (
	insertActiveQuery = `INSERT OR IGNORE INTO active_log (id, object, confidence, timestamp_ns)
		VALUES (?, ?, ?, ?)`

	copyToArchiveQuery = `INSERT OR IGNORE INTO archive_log (id, object, confidence, timestamp_ns, archived_ns)
		SELECT id, object, confidence, timestamp_ns, ? FROM active_log WHERE timestamp_ns < ?`

	deleteArchivedQuery = `DELETE FROM active_log
		WHERE timestamp_ns < ? AND id IN (SELECT id FROM archive_log)`

	listActiveQuery = `SELECT id, object, confidence, timestamp_ns FROM active_log
		ORDER BY timestamp_ns, id`
)

// ErrInvalidRecord is returned when a record fails validation.
var ErrInvalidRecord = errors.New("invalid detection record")

// SQLiteRepository stores records in a SQLite database.
type SQLiteRepository struct {
	// pool hands out prepared connections.
	pool *sqlitepool.Pool
	// now stamps archived rows.
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*SQLiteRepository, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path: path,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}

	return &SQLiteRepository{
		pool: pool,
		now:  time.Now,
	}, nil
}

// Close closes the connection pool.
func (r *SQLiteRepository) Close() error {
	return r.pool.Close()
}

// Insert adds one record to the active log.
func (r *SQLiteRepository) Insert(ctx context.Context, record detection.Record) error {
	return r.InsertMany(ctx, []detection.Record{record})
}

// InsertMany adds records to the active log in one transaction.
func (r *SQLiteRepository) InsertMany(ctx context.Context, records []detection.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	for _, record := range records {
		if record.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidRecord)
		}

		if verr := record.Validate(); verr != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, verr)
		}
	}

	conn, release, err := r.take(ctx)
	if err != nil {
		return err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer endTransaction(&err)

	for _, record := range records {
		err = sqlitex.Execute(conn, insertActiveQuery, &sqlitex.ExecOptions{
			Args: []any{
				record.ID,
				record.Object,
				record.Confidence,
				record.Timestamp.UnixNano(),
			},
		})
		if err != nil {
			return fmt.Errorf("insert record %s: %w", record.ID, err)
		}
	}

	return nil
}

// CountActive returns the number of records in the active log.
func (r *SQLiteRepository) CountActive(ctx context.Context) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM active_log")
}

// CountArchived returns the number of records in the archive log.
func (r *SQLiteRepository) CountArchived(ctx context.Context) (int64, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM archive_log")
}

// ListActive returns active records ordered by timestamp.
func (r *SQLiteRepository) ListActive(ctx context.Context) ([]detection.Record, error) {
	conn, release, err := r.take(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var records []detection.Record

	err = sqlitex.Execute(conn, listActiveQuery, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, detection.Record{
				ID:         stmt.ColumnText(0),
				Object:     stmt.ColumnText(1),
				Confidence: stmt.ColumnFloat(2),
				Timestamp:  time.Unix(0, stmt.ColumnInt64(3)),
			})

			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list active records: %w", err)
	}

	return records, nil
}

// ArchiveBefore copies active records older than cutoff into the archive and
// deletes them from the active log in one transaction.
func (r *SQLiteRepository) ArchiveBefore(ctx context.Context, cutoff time.Time) (moved int64, err error) {
	conn, release, err := r.take(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin archive: %w", err)
	}
	defer endTransaction(&err)

	cutoffNs := cutoffKey(cutoff)

	err = sqlitex.Execute(conn, copyToArchiveQuery, &sqlitex.ExecOptions{
		Args: []any{r.now().UnixNano(), cutoffNs},
	})
	if err != nil {
		return 0, fmt.Errorf("copy records to archive: %w", err)
	}

	err = sqlitex.Execute(conn, deleteArchivedQuery, &sqlitex.ExecOptions{
		Args: []any{cutoffNs},
	})
	if err != nil {
		return 0, fmt.Errorf("delete archived records: %w", err)
	}

	moved = int64(conn.Changes())

	logger.DebugKV(ctx, "Records archived", "cutoff", cutoff, "moved", moved)

	return moved, nil
}

// cutoffKey maps cutoff onto the stored nanosecond clock, saturating outside its range.
// Stored timestamps are always within [MinTimestamp, MaxTimestamp).
func cutoffKey(cutoff time.Time) int64 {
	switch {
	case cutoff.Before(detection.MinTimestamp):
		return math.MinInt64
	case !cutoff.Before(detection.MaxTimestamp):
		return math.MaxInt64
	default:
		return cutoff.UnixNano()
	}
}

// ResetActive deletes every active record.
func (r *SQLiteRepository) ResetActive(ctx context.Context) (deleted int64, err error) {
	conn, release, err := r.take(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin reset: %w", err)
	}
	defer endTransaction(&err)

	if err = sqlitex.Execute(conn, "DELETE FROM active_log", nil); err != nil {
		return 0, fmt.Errorf("delete active records: %w", err)
	}

	return int64(conn.Changes()), nil
}

// count runs a single-value COUNT query.
func (r *SQLiteRepository) count(ctx context.Context, query string) (int64, error) {
	conn, release, err := r.take(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var total int64

	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			total = stmt.ColumnInt64(0)

			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}

	return total, nil
}

// take borrows a connection that is interrupted when ctx ends.
func (r *SQLiteRepository) take(ctx context.Context) (*sqlite.Conn, func(), error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, nil, err
	}

	conn.SetInterrupt(ctx.Done())

	return conn, func() {
		conn.SetInterrupt(nil)
		r.pool.Put(conn)
	}, nil
}
