package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type state uint8

const (
	unopened state = iota
	opened
	closed
)

var errNoSerializer = errors.New("engine: driver connection cannot serialize")

// Handle owns exactly one live SQLite database for one editing session.
//
// The id/name pair is copied from the persisted record when the handle is
// created and is only used for display and logging.
type Handle struct {
	id      string
	name    string
	workDir string
	logger  *slog.Logger

	state   state
	dir     string
	db      *sql.DB
	conn    *sql.Conn
	exports int
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger used by the handle.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithWorkDir sets the parent directory of the per-handle working files.
// Defaults to os.TempDir().
func WithWorkDir(dir string) Option {
	return func(h *Handle) { h.workDir = dir }
}

// NewHandle creates an unopened handle.
func NewHandle(id, name string, opts ...Option) *Handle {
	h := &Handle{id: id, name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OpenHandle creates a handle and opens it from snapshot.
func OpenHandle(ctx context.Context, id, name string, snapshot []byte, opts ...Option) (*Handle, error) {
	h := NewHandle(id, name, opts...)
	if err := h.Open(ctx, snapshot); err != nil {
		return nil, err
	}
	return h, nil
}

// ID returns the record id the handle was created for.
func (h *Handle) ID() string { return h.id }

// Name returns the record name the handle was created for.
func (h *Handle) Name() string { return h.name }

// IsOpen reports whether the handle currently owns a database.
func (h *Handle) IsOpen() bool { return h.state == opened }

// Open initializes the database from snapshot. A nil or empty snapshot
// creates a new empty database. Open is valid on an unopened or closed
// handle; on failure the handle keeps its previous state.
func (h *Handle) Open(ctx context.Context, snapshot []byte) error {
	if h.state == opened {
		return ErrAlreadyOpen
	}
	dir, path, err := materialize(h.workDir, snapshot)
	if err != nil {
		return &InitError{Err: err}
	}
	db, err := Open(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return &InitError{Err: err}
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err == nil {
		err = verify(ctx, conn)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = db.Close()
		_ = os.RemoveAll(dir)
		return &InitError{Err: err}
	}
	h.dir, h.db, h.conn = dir, db, conn
	h.state = opened
	h.logger.Debug("engine opened", "id", h.id, "snapshot_bytes", len(snapshot))
	return nil
}

// verify forces SQLite to read the database header and pages so that corrupt
// snapshots fail at open time rather than on the first statement.
func verify(ctx context.Context, conn *sql.Conn) error {
	rows, err := conn.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (h *Handle) ready() error {
	if h.state != opened {
		return ErrNotInitialized
	}
	return nil
}

// Execute runs one statement. The statement is first run as a row-producing
// query; every row is materialized before returning. A query that reports no
// result columns yields the synthetic success result with the number of rows
// it changed. When the query attempt fails without changing the database the
// statement is executed directly, and when that fails too the query attempt's
// error is returned as a *StatementError. Errors never close the handle.
func (h *Handle) Execute(ctx context.Context, statement string) (*Result, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	before, err := h.mark(ctx)
	if err != nil {
		return nil, err
	}
	return runStatement(statement,
		func() (*Result, error) { return h.query(ctx, statement, before) },
		func() bool {
			after, err := h.mark(ctx)
			return err != nil || after != before
		},
		func() (int64, error) { return h.exec(ctx, statement) },
	)
}

// runStatement applies the query-then-exec fallback order. The fallback is
// skipped when the failed query attempt already changed the database, which
// happens when the text holds several statements and a later one fails. The
// returned error always carries the query attempt's cause.
func runStatement(statement string, query func() (*Result, error), changed func() bool, exec func() (int64, error)) (*Result, error) {
	result, queryErr := query()
	if queryErr == nil {
		return result, nil
	}
	if changed() {
		return nil, &StatementError{Statement: statement, Err: queryErr}
	}
	affected, execErr := exec()
	if execErr != nil {
		return nil, &StatementError{Statement: statement, Err: queryErr}
	}
	return executed(affected), nil
}

func (h *Handle) query(ctx context.Context, statement string, before changeMark) (*Result, error) {
	rows, err := h.conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		if err := rows.Close(); err != nil {
			return nil, err
		}
		affected, err := h.changes(ctx, before)
		if err != nil {
			return nil, err
		}
		return executed(affected), nil
	}

	result := &Result{Columns: columns, Values: [][]Value{}}
	cells := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]Value, len(cells))
		for i, cell := range cells {
			row[i] = valueOf(cell)
		}
		result.Values = append(result.Values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handle) exec(ctx context.Context, statement string) (int64, error) {
	res, err := h.conn.ExecContext(ctx, statement)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// changeMark captures the connection's row change counter and the schema
// cookie; it moves whenever a statement modified rows or the schema.
type changeMark struct {
	changes int64
	schema  int64
}

func (h *Handle) mark(ctx context.Context) (changeMark, error) {
	var m changeMark
	if err := h.conn.QueryRowContext(ctx, "SELECT total_changes()").Scan(&m.changes); err != nil {
		return m, err
	}
	err := h.conn.QueryRowContext(ctx, "PRAGMA schema_version").Scan(&m.schema)
	return m, err
}

// changes returns the rows changed by the statement that ran after before
// was taken. total_changes() also counts trigger and foreign key actions, so
// it only tells whether the statement changed anything; the count itself is
// changes(), which covers the statement's own rows and keeps its value from
// an earlier statement when nothing changed.
func (h *Handle) changes(ctx context.Context, before changeMark) (int64, error) {
	var total int64
	if err := h.conn.QueryRowContext(ctx, "SELECT total_changes()").Scan(&total); err != nil {
		return 0, err
	}
	if total == before.changes {
		return 0, nil
	}
	var n int64
	err := h.conn.QueryRowContext(ctx, "SELECT changes()").Scan(&n)
	return n, err
}

// ExecuteBatch executes every non-empty statement in order. A failing
// statement does not stop the batch: it is reported in place as a result with
// the single column "Error" holding the message. The returned slice has one
// entry per non-empty input statement.
func (h *Handle) ExecuteBatch(ctx context.Context, statements []string) []*Result {
	results := make([]*Result, 0, len(statements))
	for _, statement := range statements {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		result, err := h.Execute(ctx, statement)
		if err != nil {
			h.logger.Debug("statement failed", "id", h.id, "error", err)
			result = failed(err)
		}
		results = append(results, result)
	}
	return results
}

// Export returns the full current database as bytes that Open accepts.
func (h *Handle) Export(ctx context.Context) ([]byte, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	var image []byte
	err := h.conn.Raw(func(driverConn any) error {
		s, ok := driverConn.(serializer)
		if !ok {
			return errNoSerializer
		}
		data, err := s.Serialize()
		if err != nil {
			return err
		}
		image = append([]byte(nil), data...)
		return nil
	})
	if err == nil && len(image) > 0 {
		return image, nil
	}
	if err != nil && !errors.Is(err, errNoSerializer) {
		h.logger.Debug("serialize failed, using vacuum", "id", h.id, "error", err)
	}
	return h.vacuumInto(ctx)
}

func (h *Handle) vacuumInto(ctx context.Context) ([]byte, error) {
	h.exports++
	target := filepath.Join(h.dir, fmt.Sprintf("export-%d.db", h.exports))
	if _, err := h.conn.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(target)); err != nil {
		return nil, fmt.Errorf("engine: export: %w", err)
	}
	defer os.Remove(target)
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("engine: export: %w", err)
	}
	return data, nil
}

// Close releases the database and its working files. Close is idempotent and
// leaves the handle closed from any state.
func (h *Handle) Close() error {
	if h.state != opened {
		h.state = closed
		return nil
	}
	err := errors.Join(h.conn.Close(), h.db.Close(), os.RemoveAll(h.dir))
	h.conn, h.db, h.dir = nil, nil, ""
	h.state = closed
	h.logger.Debug("engine closed", "id", h.id)
	return err
}
