package workspace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/sqlitebook/engine"
	"github.com/viant/sqlitebook/internal/metrics"
	"github.com/viant/sqlitebook/snapshot"
)

// Workspace opens stored databases for editing.
type Workspace struct {
	store   *snapshot.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	workDir string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger passed to sessions and handles.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workspace) { w.metrics = m }
}

// WithWorkDir sets the parent directory of engine working files.
func WithWorkDir(dir string) Option {
	return func(w *Workspace) { w.workDir = dir }
}

// New creates a workspace over store.
func New(store *snapshot.Store, opts ...Option) *Workspace {
	w := &Workspace{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Store returns the underlying snapshot store.
func (w *Workspace) Store() *snapshot.Store { return w.store }

func (w *Workspace) handleOptions() []engine.Option {
	opts := []engine.Option{engine.WithLogger(w.logger)}
	if w.workDir != "" {
		opts = append(opts, engine.WithWorkDir(w.workDir))
	}
	return opts
}

// Create saves a new empty database named name.
func (w *Workspace) Create(ctx context.Context, name string) (*snapshot.Record, error) {
	record, err := w.store.NewRecord(name)
	if err != nil {
		return nil, err
	}
	if err := w.store.Save(ctx, record); err != nil {
		return nil, err
	}
	w.logger.Info("database created", "id", record.ID, "name", record.Name)
	return record, nil
}

// Import reads a database file from r, checks that the engine can open it and
// saves it as a new record. Bytes the engine rejects fail with
// engine.ErrEngineInit and nothing is saved.
func (w *Workspace) Import(ctx context.Context, filename string, r io.Reader) (*snapshot.Record, error) {
	record, err := w.store.ImportFromReader(filename, r)
	if err != nil {
		return nil, err
	}
	handle, err := engine.OpenHandle(ctx, record.ID, record.Name, record.Data, w.handleOptions()...)
	if err != nil {
		return nil, fmt.Errorf("workspace: import %s: %w", filename, err)
	}
	if err := handle.Close(); err != nil {
		w.logger.Warn("failed to close validation handle", "id", record.ID, "error", err)
	}
	if err := w.store.Save(ctx, record); err != nil {
		return nil, err
	}
	w.logger.Info("database imported", "id", record.ID, "name", record.Name, "bytes", len(record.Data))
	return record, nil
}

// Open loads the record stored under id and opens an engine handle on it.
// A missing or unreadable record fails with snapshot.ErrNotFound.
func (w *Workspace) Open(ctx context.Context, id string) (*Session, error) {
	record, err := w.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &snapshot.Error{Op: "open", ID: id, Kind: snapshot.ErrNotFound}
	}
	handle, err := engine.OpenHandle(ctx, record.ID, record.Name, record.Data, w.handleOptions()...)
	if err != nil {
		return nil, err
	}
	w.logger.Debug("session opened", "id", record.ID)
	return &Session{ws: w, record: record, handle: handle}, nil
}

// Outcome is the result of one Run.
type Outcome struct {
	// Results holds one result per executed statement, in order.
	Results []*engine.Result
	// Saved reports whether a new snapshot was written.
	Saved bool
}

// Failures returns the number of failed statements.
func (o *Outcome) Failures() int {
	n := 0
	for _, r := range o.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Session is one open database.
type Session struct {
	ws     *Workspace
	mu     sync.Mutex
	record *snapshot.Record
	handle *engine.Handle
}

// Record returns a copy of the record as last saved by this session.
func (s *Session) Record() *snapshot.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

// Run splits text into statements and runs them with RunStatements.
func (s *Session) Run(ctx context.Context, text string) (*Outcome, error) {
	return s.RunStatements(ctx, SplitStatements(text))
}

// RunStatements executes statements in order, then saves the exported
// database if it differs from the stored snapshot. Statement failures are
// reported in the results; the returned error covers export and save only.
func (s *Session) RunStatements(ctx context.Context, statements []string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.handle.IsOpen() {
		return nil, engine.ErrNotInitialized
	}

	start := time.Now()
	defer func() { s.ws.metrics.Batch(time.Since(start)) }()

	outcome := &Outcome{Results: s.handle.ExecuteBatch(ctx, statements)}
	for _, r := range outcome.Results {
		switch {
		case r.Failed():
			s.ws.metrics.Statement(metrics.OutcomeFailed)
		case r.RowsAffected != nil:
			s.ws.metrics.Statement(metrics.OutcomeExecuted)
		default:
			s.ws.metrics.Statement(metrics.OutcomeRows)
		}
	}

	data, err := s.handle.Export(ctx)
	if err != nil {
		return outcome, fmt.Errorf("workspace: export %s: %w", s.record.ID, err)
	}
	if bytes.Equal(data, s.record.Data) {
		return outcome, nil
	}
	updated := s.record.Clone()
	updated.Data = data
	updated.LastModified = s.ws.store.Now()
	if err := s.ws.store.Save(ctx, updated); err != nil {
		return outcome, err
	}
	s.record = updated
	outcome.Saved = true
	s.ws.logger.Debug("snapshot updated", "id", updated.ID, "statements", len(statements), "failures", outcome.Failures())
	return outcome, nil
}

// Tables lists the user tables of the open database.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.Tables(ctx)
}

// Columns describes the columns of table.
func (s *Session) Columns(ctx context.Context, table string) ([]engine.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.Columns(ctx, table)
}

// Close releases the engine handle. Unsaved state does not exist after a
// successful Run, so Close never writes.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.Close()
}
