package kv

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = 0
	disk, err := NewBadger(cfg, slog.Default())
	if err != nil {
		t.Fatalf("NewBadger failed: %v", err)
	}
	mem, err := NewBadger(BadgerConfig{InMemory: true, Prefix: "x/"}, nil)
	if err != nil {
		t.Fatalf("NewBadger(in-memory) failed: %v", err)
	}
	stores := map[string]Store{
		"memory":          NewMemory(),
		"badger":          disk,
		"badger-inmemory": mem,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
			}

			value := []byte{0, 1, 2, 255}
			if err := store.Set(ctx, "a", value); err != nil {
				t.Fatal(err)
			}
			value[0] = 42
			got, err := store.Get(ctx, "a")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != string([]byte{0, 1, 2, 255}) {
				t.Fatalf("Get(a) = %v; store must not alias caller memory", got)
			}

			if err := store.Set(ctx, "b", []byte("two")); err != nil {
				t.Fatal(err)
			}
			if err := store.Set(ctx, "a", []byte("one")); err != nil {
				t.Fatal(err)
			}
			keys, err := store.Keys(ctx)
			if err != nil {
				t.Fatal(err)
			}
			sort.Strings(keys)
			if strings.Join(keys, ",") != "a,b" {
				t.Fatalf("Keys = %v, want [a b]", keys)
			}

			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatalf("second Delete must be a no-op: %v", err)
			}
			if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get after delete = %v", err)
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			keys, err = store.Keys(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(keys) != 0 {
				t.Fatalf("Keys after Clear = %v", keys)
			}
		})
	}
}

func TestMemory_KeysKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, k := range []string{"c", "a", "b"} {
		_ = m.Set(ctx, k, nil)
	}
	_ = m.Set(ctx, "c", []byte("again"))
	keys, _ := m.Keys(ctx)
	if strings.Join(keys, ",") != "c,a,b" {
		t.Fatalf("Keys = %v, want [c a b]", keys)
	}
	_ = m.Close()
	if _, err := m.Keys(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Keys after Close = %v, want ErrClosed", err)
	}
}

func TestBadger_PrefixIsolation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0
	store, err := NewBadger(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	// Write a key outside the namespace directly.
	if err := store.db.Update(func(txn *badger.Txn) error { return txn.Set([]byte("other/k"), []byte("v")) }); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "mine", []byte("v")); err != nil {
		t.Fatal(err)
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "mine" {
		t.Fatalf("Keys = %v, want [mine]", keys)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	err = store.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("other/k"))
		return err
	})
	if err != nil {
		t.Fatalf("Clear must leave foreign keys alone: %v", err)
	}
}

func TestBadger_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = 0

	store, err := NewBadger(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "k", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	store, err = NewBadger(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "persisted" {
		t.Fatalf("Get(k) = %q", got)
	}
}

func TestBadger_RegisterMetrics(t *testing.T) {
	store, err := NewBadger(BadgerConfig{InMemory: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	registry := prometheus.NewRegistry()
	if err := store.RegisterMetrics(registry); err != nil {
		t.Fatal(err)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 2 {
		t.Fatalf("expected 2 metric families, got %d", len(families))
	}
}

func TestNewBadger_RequiresDir(t *testing.T) {
	if _, err := NewBadger(BadgerConfig{}, nil); err == nil {
		t.Fatal("expected error without dir")
	}
}
