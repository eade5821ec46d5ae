package sqlitepool

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oshokin/home-security/internal/logger"
)

// Config holds the parameters for opening a pool.
type Config struct {
	// Path is the database file. It is created if missing.
	Path string
	// PoolSize is the number of connections; zero means DefaultPoolSize.
	PoolSize int
	// Logger receives open and close messages; nil means the global logger.
	Logger *zap.SugaredLogger
	// OnConnect runs once per connection after the pragmas, e.g. for schema setup.
	OnConnect func(conn *sqlite.Conn) error
}

// DefaultPoolSize is enough for one writer and a couple of status readers.
const DefaultPoolSize = 4

// ErrPathRequired is returned by Open when Config.Path is empty.
var ErrPathRequired = errors.New("sqlite path is required")

// connectionPragmas are applied to every new connection.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Pool is a fixed-size pool of prepared SQLite connections.
type Pool struct {
	// inner is the wrapped sqlitex pool.
	inner *sqlitex.Pool
	// log receives lifecycle messages.
	log *zap.SugaredLogger
	// path is kept for log messages.
	path string
}

// Open creates the pool. Connections are prepared lazily on first Take.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, ErrPathRequired
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Logger()
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}

	inner, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepare(conn, cfg.OnConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite pool %s: %w", cfg.Path, err)
	}

	log.Debugw("SQLite pool opened", "path", cfg.Path, "pool_size", size)

	return &Pool{
		inner: inner,
		log:   log,
		path:  cfg.Path,
	}, nil
}

// Take borrows a connection until Put is called. It blocks until one is free or ctx ends.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take sqlite connection: %w", err)
	}

	return conn, nil
}

// Put returns a connection taken with Take. Nil is ignored.
func (p *Pool) Put(conn *sqlite.Conn) {
	p.inner.Put(conn)
}

// Close waits for borrowed connections and closes them all.
func (p *Pool) Close() error {
	if err := p.inner.Close(); err != nil {
		p.log.Errorw("Failed to close SQLite pool", "path", p.path, "error", err)

		return fmt.Errorf("close sqlite pool %s: %w", p.path, err)
	}

	p.log.Debugw("SQLite pool closed", "path", p.path)

	return nil
}

// prepare applies the connection pragmas and the caller's hook.
func prepare(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	for _, pragma := range connectionPragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if onConnect == nil {
		return nil
	}

	if err := onConnect(conn); err != nil {
		return fmt.Errorf("prepare connection: %w", err)
	}

	return nil
}
