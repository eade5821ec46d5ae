package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/home-security/internal/logger"
)

// Store is the part of the log store the manager mutates.
type Store interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ResetActive(ctx context.Context) (int64, error)
}

// Kind names a lifecycle operation.
type Kind int

const (
	// KindArchive moves records older than a cutoff into the archive.
	KindArchive Kind = iota + 1
	// KindReset deletes every active record.
	KindReset
)

// String returns the operation name used in logs.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Operation is one queued lifecycle request.
type Operation struct {
	Kind Kind
	// Cutoff is the exclusive upper bound of archived timestamps.
	Cutoff time.Time
}

// Result is the outcome of an operation.
type Result struct {
	Operation Operation
	// Count is the number of records archived or deleted.
	Count int64
	// Err is set when the operation had no effect.
	Err error
}

// DefaultQueueSize bounds the number of operations waiting for the worker.
const DefaultQueueSize = 16

var (
	// ErrStopped is returned for operations submitted after the worker stopped.
	ErrStopped = errors.New("lifecycle worker stopped")
	// ErrQueueFull is returned when too many operations are waiting.
	ErrQueueFull = errors.New("lifecycle queue is full")
	// ErrUnknownOperation is returned for an unsupported operation kind.
	ErrUnknownOperation = errors.New("unknown lifecycle operation")
)

// job pairs an operation with the channel its result goes to.
type job struct {
	op     Operation
	result chan Result
}

// Manager runs lifecycle operations against the log store.
type Manager struct {
	// store holds the active and archive logs.
	store Store
	// timeout bounds every store call; zero means none.
	timeout time.Duration

	// opMu serializes operations on the active log.
	opMu sync.Mutex

	// submitMu guards stopped against concurrent Submit calls.
	submitMu sync.RWMutex
	// stopped rejects new submissions once the worker exits.
	stopped bool
	// queue feeds the worker.
	queue chan job
}

// NewManager creates a manager. Run must be started for Submit results to arrive.
func NewManager(store Store, timeout time.Duration) *Manager {
	return &Manager{
		store:   store,
		timeout: timeout,
		queue:   make(chan job, DefaultQueueSize),
	}
}

// ArchiveBefore moves active records older than cutoff into the archive.
func (m *Manager) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return m.execute(ctx, Operation{Kind: KindArchive, Cutoff: cutoff})
}

// ResetAll deletes every active record. The archive is untouched.
func (m *Manager) ResetAll(ctx context.Context) (int64, error) {
	return m.execute(ctx, Operation{Kind: KindReset})
}

// Submit queues op for the worker. The returned channel receives exactly one Result.
func (m *Manager) Submit(op Operation) <-chan Result {
	result := make(chan Result, 1)

	m.submitMu.RLock()
	defer m.submitMu.RUnlock()

	if m.stopped {
		result <- Result{Operation: op, Err: ErrStopped}

		return result
	}

	select {
	case m.queue <- job{op: op, result: result}:
	default:
		result <- Result{Operation: op, Err: ErrQueueFull}
	}

	return result
}

// Run executes queued operations in order until ctx is canceled.
// Operations accepted before cancellation are still executed.
func (m *Manager) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "lifecycle")

	for {
		select {
		case <-ctx.Done():
			m.stop(context.WithoutCancel(ctx))

			return nil
		case j := <-m.queue:
			m.handle(context.WithoutCancel(ctx), j)
		}
	}
}

// stop rejects new submissions and drains what is already queued.
func (m *Manager) stop(ctx context.Context) {
	m.submitMu.Lock()
	m.stopped = true
	m.submitMu.Unlock()

	for {
		select {
		case j := <-m.queue:
			m.handle(ctx, j)
		default:
			return
		}
	}
}

// handle runs one job and delivers its result.
func (m *Manager) handle(ctx context.Context, j job) {
	count, err := m.execute(ctx, j.op)

	j.result <- Result{
		Operation: j.op,
		Count:     count,
		Err:       err,
	}
}

// execute runs op under the operation lock and the store timeout.
func (m *Manager) execute(ctx context.Context, op Operation) (int64, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var (
		count int64
		err   error
	)

	switch op.Kind {
	case KindArchive:
		count, err = m.store.ArchiveBefore(ctx, op.Cutoff)
	case KindReset:
		count, err = m.store.ResetActive(ctx)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownOperation, op.Kind)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Log lifecycle operation failed", "operation", op.Kind.String(), "error", err)

		return 0, fmt.Errorf("%s logs: %w", op.Kind, err)
	}

	logger.InfoKV(ctx, "Log lifecycle operation completed", "operation", op.Kind.String(), "count", count)

	return count, nil
}
