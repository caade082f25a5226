package workspace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/viant/sqlitebook/engine"
	"github.com/viant/sqlitebook/internal/metrics"
	"github.com/viant/sqlitebook/kv"
	"github.com/viant/sqlitebook/snapshot"
)

type tickingClock struct{ now time.Time }

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newWorkspace(t *testing.T) (*Workspace, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		t.Fatal(err)
	}
	clock := &tickingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := snapshot.New(kv.NewMemory(), snapshot.WithClock(clock.Now), snapshot.WithMetrics(m))
	return New(store, WithMetrics(m), WithWorkDir(t.TempDir())), registry
}

func TestSession_RunPersists(t *testing.T) {
	ctx := context.Background()
	ws, registry := newWorkspace(t)

	record, err := ws.Create(ctx, "inventory")
	if err != nil {
		t.Fatal(err)
	}
	session, err := ws.Open(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	outcome, err := session.Run(ctx, "CREATE TABLE t(id INTEGER); INSERT INTO t VALUES(1); SELECT id FROM nonexistent; INSERT INTO t VALUES(2)")
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(outcome.Results))
	}
	if outcome.Failures() != 1 || !outcome.Results[2].Failed() {
		t.Fatalf("expected only the third statement to fail")
	}
	if !outcome.Saved {
		t.Fatal("mutating batch must be saved")
	}
	saved := session.Record()
	if !saved.LastModified.After(record.LastModified) {
		t.Fatalf("lastModified not advanced: %v <= %v", saved.LastModified, record.LastModified)
	}
	if err := session.Close(); err != nil {
		t.Fatal(err)
	}

	stored, err := ws.Store().Load(ctx, record.ID)
	if err != nil || stored == nil {
		t.Fatalf("Load = %v, %v", stored, err)
	}
	if !bytes.Equal(stored.Data, saved.Data) {
		t.Fatal("stored snapshot differs from session snapshot")
	}

	reopened, err := ws.Open(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	outcome, err = reopened.Run(ctx, "SELECT count(*) FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := outcome.Results[0].Values[0][0].Int(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if outcome.Saved {
		t.Fatal("read-only batch must not be saved")
	}

	expected := `
# HELP sqlitebook_engine_statements_total Statements executed, by outcome
# TYPE sqlitebook_engine_statements_total counter
sqlitebook_engine_statements_total{outcome="executed"} 3
sqlitebook_engine_statements_total{outcome="failed"} 1
sqlitebook_engine_statements_total{outcome="rows"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "sqlitebook_engine_statements_total"); err != nil {
		t.Fatal(err)
	}
}

func TestSession_TablesColumns(t *testing.T) {
	ctx := context.Background()
	ws, _ := newWorkspace(t)
	record, err := ws.Create(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(record.Name, "Untitled Database ") {
		t.Fatalf("name = %q", record.Name)
	}
	session, err := ws.Open(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()
	if _, err := session.Run(ctx, "CREATE TABLE b(x TEXT NOT NULL); CREATE TABLE a(id INTEGER PRIMARY KEY, v REAL DEFAULT 1.5)"); err != nil {
		t.Fatal(err)
	}
	tables, err := session.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(tables, ",") != "a,b" {
		t.Fatalf("tables = %v", tables)
	}
	columns, err := session.Columns(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(columns) != 2 || columns[0].Name != "id" || columns[0].PrimaryKey != 1 || columns[1].Type != "REAL" {
		t.Fatalf("columns = %+v", columns)
	}
}

func TestSession_ClosedSession(t *testing.T) {
	ctx := context.Background()
	ws, _ := newWorkspace(t)
	record, _ := ws.Create(ctx, "x")
	session, err := ws.Open(ctx, record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := session.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Run(ctx, "SELECT 1"); !errors.Is(err, engine.ErrNotInitialized) {
		t.Fatalf("Run after Close = %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close = %v", err)
	}
}

func TestWorkspace_OpenMissing(t *testing.T) {
	ws, _ := newWorkspace(t)
	if _, err := ws.Open(context.Background(), "missing"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Fatalf("Open(missing) = %v, want ErrNotFound", err)
	}
}

func TestWorkspace_Import(t *testing.T) {
	ctx := context.Background()
	ws, _ := newWorkspace(t)

	source, err := ws.Create(ctx, "source")
	if err != nil {
		t.Fatal(err)
	}
	session, err := ws.Open(ctx, source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.Run(ctx, "CREATE TABLE kv(k TEXT, v BLOB); INSERT INTO kv VALUES('a', X'00FF')"); err != nil {
		t.Fatal(err)
	}
	data := session.Record().Data
	_ = session.Close()

	imported, err := ws.Import(ctx, "backup/copy.sqlite", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if imported.Name != "copy" || imported.ID == source.ID {
		t.Fatalf("unexpected imported record %+v", imported)
	}
	session, err = ws.Open(ctx, imported.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()
	outcome, err := session.Run(ctx, "SELECT v FROM kv WHERE k = 'a'")
	if err != nil {
		t.Fatal(err)
	}
	if blob, ok := outcome.Results[0].Values[0][0].Blob(); !ok || !bytes.Equal(blob, []byte{0x00, 0xff}) {
		t.Fatalf("blob = %v", outcome.Results[0].Values[0][0])
	}

	_, err = ws.Import(ctx, "junk.db", strings.NewReader(strings.Repeat("not a database ", 64)))
	if !errors.Is(err, engine.ErrEngineInit) {
		t.Fatalf("Import(junk) = %v, want ErrEngineInit", err)
	}
	records, err := ws.Store().List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("rejected import must not be saved; have %d records", len(records))
	}
	if records[0].ID != imported.ID {
		t.Fatalf("most recent record = %s, want %s", records[0].ID, imported.ID)
	}
}
