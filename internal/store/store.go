package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

var (
	// ErrNotFound is returned when a row addressed by id or path does not exist.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned for requests submitted after Close.
	ErrClosed = errors.New("store closed")
	// ErrSuperseded is returned by WriteIndexed when its guard rejects the write.
	ErrSuperseded = errors.New("write superseded")
)

// Op names the stage of a SQL call that failed.
type Op string

const (
	OpOpen    Op = "open"
	OpPrepare Op = "prepare"
	OpBind    Op = "bind"
	OpStep    Op = "step"
	OpExec    Op = "exec"
)

// Error is a typed failure from the SQL engine.
type Error struct {
	Op  Op
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s failed: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// fail wraps err as a typed store error. It returns nil for a nil err and
// passes sentinels and context errors through untouched.
func fail(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrSuperseded) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Op: op, Msg: msg, Err: err}
}

// Store is the only owner of the database connection. Every request runs on
// a single worker goroutine in submission order.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	reqs      chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type request struct {
	ctx  context.Context
	fn   func(ctx context.Context, db *sql.DB) error
	errc chan error
}

// Open creates or opens a SQLite database at the given path and migrates the schema.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fail(OpOpen, dbPath, err)
	}
	// One connection: the engine is single-writer and the worker serializes access anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fail(OpOpen, dbPath, err)
	}
	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &Store{
		db:     db,
		path:   dbPath,
		logger: logger,
		reqs:   make(chan request),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.reqs:
			req.errc <- req.fn(req.ctx, s.db)
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the worker goroutine and waits for it to finish. fn must not
// call back into the Store.
func (s *Store) do(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := request{ctx: ctx, fn: fn, errc: make(chan error, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.errc
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fail(OpExec, "begin", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fail(OpExec, "commit", err)
	}
	return nil
}

// Meta returns a metadata value by key, or "" if not set.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		err := db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fail(OpStep, "read meta", err)
	})
	return value, err
}

// SetMeta sets a metadata key-value pair.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value,
		)
		return fail(OpExec, "write meta", err)
	})
}

// Close stops the worker and closes the underlying database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		err = s.db.Close()
	})
	return err
}
