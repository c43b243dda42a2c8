package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

var ErrNotFound = errors.New("not found")

// Store is the embedded SQLite database behind the session registry, the score ledger, the
// blocklist and the user cache. It assumes it is the only writer of its file.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	stmts statements
}

type Options struct {
	// Now stamps ledger entries. Defaults to time.Now.
	Now func() time.Time
}

func Open(path string) (*Store, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions creates or opens the database at path, applies pragmas and the schema, and
// prepares the statements reused by every request. Safe to call on every startup.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// SQLite has a single writer; one connection keeps writes serialized without SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: opts.Now}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.stmts.prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.stmts.close()
	return s.db.Close()
}

// Exec runs a DDL or DML statement outside any transaction.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// Prepare compiles a statement for repeated use. Arguments are bound per call, so nothing
// leaks from one invocation to the next.
func (s *Store) Prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	return s.db.PrepareContext(ctx, query)
}

// Tx is an open transaction. Statements prepared at Open are rebound to it.
type Tx struct {
	ctx   context.Context
	tx    *sql.Tx
	store *Store
}

func (t *Tx) stmt(st *sql.Stmt) *sql.Stmt {
	return t.tx.StmtContext(t.ctx, st)
}

// Transaction runs fn inside a transaction. Exactly one of commit or rollback happens, and the
// result and error of fn are returned unchanged once the transaction has resolved.
func Transaction[T any](ctx context.Context, s *Store, fn func(tx *Tx) (T, error)) (T, error) {
	var zero T
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	result, err := fn(&Tx{ctx: ctx, tx: sqlTx, store: s})
	if err != nil {
		return zero, err
	}
	if err := sqlTx.Commit(); err != nil {
		return zero, fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return result, nil
}

// InTx is Transaction for callers without a result.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	_, err := Transaction(ctx, s, func(tx *Tx) (struct{}, error) {
		return struct{}{}, fn(tx)
	})
	return err
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

type statements struct {
	resolveSession  *sql.Stmt
	fetchSession    *sql.Stmt
	listSessions    *sql.Stmt
	sessionsForUser *sql.Stmt
	appendLog       *sql.Stmt
	logForSession   *sql.Stmt
	isBlocked       *sql.Stmt
	block           *sql.Stmt
	unblock         *sql.Stmt
	listBlocklist   *sql.Stmt
	putUser         *sql.Stmt
	fetchUser       *sql.Stmt
}

func (st *statements) prepare(db *sql.DB) error {
	targets := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&st.resolveSession, resolveSessionSQL},
		{&st.fetchSession, fetchSessionSQL},
		{&st.listSessions, listSessionsSQL},
		{&st.sessionsForUser, sessionsForUserSQL},
		{&st.appendLog, appendLogSQL},
		{&st.logForSession, logForSessionSQL},
		{&st.isBlocked, isBlockedSQL},
		{&st.block, blockSQL},
		{&st.unblock, unblockSQL},
		{&st.listBlocklist, listBlocklistSQL},
		{&st.putUser, putUserSQL},
		{&st.fetchUser, fetchUserSQL},
	}
	for _, t := range targets {
		stmt, err := db.Prepare(t.query)
		if err != nil {
			st.close()
			return fmt.Errorf("prepare %q: %w", t.query, err)
		}
		*t.dst = stmt
	}
	return nil
}

func (st *statements) close() {
	for _, stmt := range []*sql.Stmt{
		st.resolveSession, st.fetchSession, st.listSessions, st.sessionsForUser,
		st.appendLog, st.logForSession, st.isBlocked, st.block, st.unblock,
		st.listBlocklist, st.putUser, st.fetchUser,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}
