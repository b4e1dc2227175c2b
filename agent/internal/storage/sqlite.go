package storage

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/exceptionless/exceptionless-go/agent/internal/codec"
	"github.com/exceptionless/exceptionless-go/pkg/types"
)

const defaultSQLitePoolSize = 4

const schema = `
CREATE TABLE IF NOT EXISTS queue (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	key  TEXT NOT NULL UNIQUE,
	body BLOB NOT NULL
);
`

// SQLiteConfig holds the parameters for opening a SQLite-backed store.
type SQLiteConfig struct {
	// Path is the database file. The parent directory must exist; the file
	// is created on first open.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4.
	PoolSize int

	// Logger receives operational messages. Defaults to slog.Default().
	Logger *slog.Logger
}

// SQLite is a durable Storage backed by a single SQLite table. Rows are
// dequeued in row id order, which is insertion order.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens (creating if necessary) the queue database at cfg.Path.
// The caller must call Close when done.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage: sqlite path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultSQLitePoolSize
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Path, err)
	}

	logger.Info("storage: sqlite queue opened", "path", cfg.Path, "pool_size", poolSize)
	return &SQLite{pool: pool, logger: logger, path: cfg.Path}, nil
}

// prepareConn applies pragmas and ensures the schema on every new connection.
func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

// Save inserts ev under key.
func (s *SQLite) Save(ctx context.Context, key string, ev *types.Event) error {
	body, err := codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("storage: encode event: %w", err)
	}

	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT INTO queue (key, body) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{key, body},
	})
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	return nil
}

// Get removes and returns up to max events whose key starts with prefix,
// oldest first. Rows that can no longer be decoded are deleted and skipped.
func (s *SQLite) Get(ctx context.Context, prefix string, max int) (events []*types.Event, err error) {
	if max <= 0 {
		return nil, nil
	}

	conn, err := s.take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var ids []int64
	err = sqlitex.Execute(conn,
		"SELECT id, key, body FROM queue WHERE substr(key, 1, length(?1)) = ?1 ORDER BY id LIMIT ?2",
		&sqlitex.ExecOptions{
			Args: []any{prefix, max},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnInt64(0))

				body := make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, body)

				var ev types.Event
				if err := codec.Unmarshal(body, &ev); err != nil {
					s.logger.Warn("storage: dropping undecodable event",
						"key", stmt.ColumnText(1), "err", err)
					return nil
				}
				events = append(events, &ev)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("storage: select batch: %w", err)
	}

	for _, id := range ids {
		if err = sqlitex.Execute(conn, "DELETE FROM queue WHERE id = ?", &sqlitex.ExecOptions{
			Args: []any{id},
		}); err != nil {
			return nil, fmt.Errorf("storage: delete row %d: %w", id, err)
		}
	}
	return events, nil
}

// Clear removes every event whose key starts with prefix.
func (s *SQLite) Clear(ctx context.Context, prefix string) error {
	conn, err := s.take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM queue WHERE substr(key, 1, length(?1)) = ?1", &sqlitex.ExecOptions{
		Args: []any{prefix},
	})
	if err != nil {
		return fmt.Errorf("storage: clear %s: %w", prefix, err)
	}
	s.logger.Debug("storage: cleared", "prefix", prefix, "rows", conn.Changes())
	return nil
}

// Count returns the number of queued rows.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	conn, err := s.take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	var n int
	err = sqlitex.Execute(conn, "SELECT count(*) FROM queue", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("storage: count: %w", err)
	}
	return n, nil
}

// Close closes the connection pool. Blocks until borrowed connections are
// returned.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", s.path, err)
	}
	s.logger.Info("storage: sqlite queue closed", "path", s.path)
	return nil
}

func (s *SQLite) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: take connection: %w", err)
	}
	return conn, nil
}
