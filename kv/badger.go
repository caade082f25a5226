package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerConfig configures a Badger-backed store.
type BadgerConfig struct {
	// Dir is the storage directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory; used by tests.
	InMemory bool

	// Prefix namespaces every key so several stores can share one directory.
	Prefix string

	// SyncWrites fsyncs after each write.
	SyncWrites bool

	// GCInterval is the interval between value log GC runs; zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the value log GC discard ratio (0.0-1.0).
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns the default configuration for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:            dir,
		Prefix:         "db/",
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// Badger implements Store on Badger v3.
type Badger struct {
	db     *badger.DB
	cfg    BadgerConfig
	prefix []byte
	logger *slog.Logger

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewBadger opens a Badger store.
func NewBadger(cfg BadgerConfig, logger *slog.Logger) (*Badger, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &Badger{
		db:     db,
		cfg:    cfg,
		prefix: []byte(cfg.Prefix),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.gcLoop()
	} else {
		close(s.doneCh)
	}

	logger.Debug("badger store opened", "dir", cfg.Dir, "in_memory", cfg.InMemory, "prefix", cfg.Prefix)
	return s, nil
}

func (s *Badger) key(key string) []byte {
	out := make([]byte, 0, len(s.prefix)+len(key))
	out = append(out, s.prefix...)
	return append(out, key...)
}

func (s *Badger) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return value, nil
}

func (s *Badger) Set(ctx context.Context, key string, value []byte) error {
	return s.mapErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(key), value)
	}))
}

func (s *Badger) Delete(ctx context.Context, key string) error {
	return s.mapErr(s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	}))
}

// Keys returns keys in byte order, which for ULID ids is creation order.
func (s *Badger) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().Key()
			keys = append(keys, string(key[len(s.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return keys, nil
}

func (s *Badger) Clear(ctx context.Context) error {
	if len(s.prefix) == 0 {
		return s.mapErr(s.db.DropAll())
	}
	return s.mapErr(s.db.DropPrefix(s.prefix))
}

// Close stops the GC loop and closes the database. It is idempotent.
func (s *Badger) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		if cerr := s.db.Close(); cerr != nil {
			err = fmt.Errorf("badger: close db: %w", cerr)
		}
		s.logger.Debug("badger store closed")
	})
	return err
}

func (s *Badger) mapErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// RegisterMetrics exposes the LSM and value log sizes on registry.
func (s *Badger) RegisterMetrics(registry prometheus.Registerer) error {
	lsm := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sqlitebook",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	}, func() float64 {
		size, _ := s.db.Size()
		return float64(size)
	})
	vlog := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sqlitebook",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	}, func() float64 {
		_, size := s.db.Size()
		return float64(size)
	})
	for _, c := range []prometheus.Collector{lsm, vlog} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Badger) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runs := 0
			for {
				err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Error("badger gc failed", "error", err)
					}
					break
				}
				runs++
			}
			if runs > 0 {
				s.logger.Debug("badger gc completed", "rewrites", runs)
			}
		case <-s.stopCh:
			return
		}
	}
}

var _ Store = (*Badger)(nil)

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
