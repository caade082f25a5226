package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/viant/sqlitebook/internal/metrics"
	"github.com/viant/sqlitebook/kv"
)

// LoadStatus tells how a lookup ended.
type LoadStatus int

const (
	// Absent means no record is stored under the id.
	Absent LoadStatus = iota
	// Found means the record was read and decoded.
	Found
	// Corrupt means a stored document exists but could not be decoded.
	Corrupt
)

func (s LoadStatus) String() string {
	switch s {
	case Found:
		return "found"
	case Corrupt:
		return "corrupt"
	default:
		return "absent"
	}
}

// LoadResult is the outcome of Lookup.
type LoadResult struct {
	Status LoadStatus
	Record *Record
	// Err is the decode error of a Corrupt result.
	Err error
}

// SkipEvent describes a record dropped by a lenient read.
type SkipEvent struct {
	ID  string
	Err error
}

// Store maps database ids to records in a kv.Store. It is safe for concurrent
// use on different ids.
type Store struct {
	kv      kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	onSkip  func(SkipEvent)
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithSkipObserver registers fn to be called for every record skipped by a
// lenient read.
func WithSkipObserver(fn func(SkipEvent)) Option {
	return func(s *Store) { s.onSkip = fn }
}

// WithClock overrides the time source used for new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store on top of backing.
func New(backing kv.Store, opts ...Option) *Store {
	s := &Store{kv: backing, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's current time.
func (s *Store) Now() time.Time { return s.now() }

// Save writes record under record.ID, replacing any previous value. The
// record itself is never modified.
func (s *Store) Save(ctx context.Context, record *Record) (err error) {
	defer func() { s.metrics.StoreOp("save", err) }()
	if record == nil || record.ID == "" {
		return persistError("save", "", fmt.Errorf("record id is required"))
	}
	raw, err := encodeRecord(record)
	if err != nil {
		return persistError("save", record.ID, err)
	}
	if err := s.kv.Set(ctx, record.ID, raw); err != nil {
		return persistError("save", record.ID, err)
	}
	s.logger.Debug("snapshot saved", "id", record.ID, "bytes", len(record.Data))
	return nil
}

// Lookup reads one record and reports whether it was found, absent or
// corrupt. Only backing store failures are returned as errors.
func (s *Store) Lookup(ctx context.Context, id string) (LoadResult, error) {
	raw, err := s.kv.Get(ctx, id)
	if errors.Is(err, kv.ErrNotFound) {
		return LoadResult{Status: Absent}, nil
	}
	if err != nil {
		return LoadResult{}, persistError("load", id, err)
	}
	record, err := decodeRecord(raw)
	if err != nil {
		return LoadResult{Status: Corrupt, Err: err}, nil
	}
	return LoadResult{Status: Found, Record: record}, nil
}

// Load returns the record stored under id, or nil when there is none. A
// corrupt record is skipped and reported as absent.
func (s *Store) Load(ctx context.Context, id string) (record *Record, err error) {
	defer func() { s.metrics.StoreOp("load", err) }()
	result, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.Status == Corrupt {
		s.skip(id, result.Err)
	}
	return result.Record, nil
}

func (s *Store) skip(id string, err error) {
	s.logger.Warn("skipping unreadable snapshot", "id", id, "error", err)
	s.metrics.RecordSkipped()
	if s.onSkip != nil {
		s.onSkip(SkipEvent{ID: id, Err: err})
	}
}

// List returns every readable record, most recently modified first. Records
// with equal timestamps keep the backing store's enumeration order. Records
// that fail to decode are skipped; backing store failures abort the listing.
func (s *Store) List(ctx context.Context) (records []*Record, err error) {
	defer func() { s.metrics.StoreOp("list", err) }()
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, persistError("list", "", err)
	}
	records = make([]*Record, 0, len(keys))
	for _, key := range keys {
		result, err := s.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		switch result.Status {
		case Found:
			records = append(records, result.Record)
		case Corrupt:
			s.skip(key, result.Err)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastModified.After(records[j].LastModified)
	})
	return records, nil
}

// Delete removes the record stored under id. Deleting a missing id is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.StoreOp("delete", err) }()
	if err := s.kv.Delete(ctx, id); err != nil {
		return persistError("delete", id, err)
	}
	s.logger.Debug("snapshot deleted", "id", id)
	return nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) (err error) {
	defer func() { s.metrics.StoreOp("clear", err) }()
	if err := s.kv.Clear(ctx); err != nil {
		return persistError("clear", "", err)
	}
	s.logger.Info("snapshot store cleared")
	return nil
}

// ExportBlob returns the snapshot stored under id packaged as a file, or nil
// when there is no such record.
func (s *Store) ExportBlob(ctx context.Context, id string) (*Blob, error) {
	record, err := s.Load(ctx, id)
	if err != nil || record == nil {
		return nil, err
	}
	return &Blob{
		Filename:    exportFilename(record.Name),
		ContentType: ContentType,
		Data:        record.Data,
	}, nil
}

// NewRecord returns an unsaved record for a new empty database.
func (s *Store) NewRecord(name string) (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled Database " + idSuffix(id)
	}
	now := s.now()
	return &Record{ID: id, Name: name, Data: []byte{}, CreatedAt: now, LastModified: now}, nil
}

// ImportFromBytes returns an unsaved record holding data verbatim. The name
// is filename without directory and extension.
func (s *Store) ImportFromBytes(filename string, data []byte) (*Record, error) {
	id, err := NewID()
	if err != nil {
		return nil, &Error{Op: "import", Kind: ErrImport, Err: err}
	}
	name := importName(filename)
	if name == "" {
		name = "Imported Database " + idSuffix(id)
	}
	if data == nil {
		data = []byte{}
	}
	now := s.now()
	return &Record{ID: id, Name: name, Data: data, CreatedAt: now, LastModified: now}, nil
}

// ImportFromReader reads r to completion and imports the bytes.
func (s *Store) ImportFromReader(filename string, r io.Reader) (*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &Error{Op: "import", ID: filename, Kind: ErrImport, Err: err}
	}
	return s.ImportFromBytes(filename, data)
}

func importName(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSpace(base)
}

func exportFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "database"
	}
	return name + FileExtension
}
