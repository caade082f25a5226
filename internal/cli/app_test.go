package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

type harness struct {
	t   *testing.T
	dir string
}

// run executes one CLI invocation against the harness store directory.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}
	full := append([]string{"sqlitebook", "--store-dir", h.dir, "--backend", "badger"}, args...)
	err := app.Run(full)
	return out.String(), err
}

func newHarness(t *testing.T) *harness {
	t.Setenv("SQLITEBOOK_STORE_GC_INTERVAL", "0s")
	return &harness{t: t, dir: t.TempDir()}
}

func createDatabase(t *testing.T, h *harness, name string) string {
	t.Helper()
	out, err := h.run("", "-o", "json", "create", name)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	var views []recordView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("create output %q: %v", out, err)
	}
	if len(views) != 1 || views[0].Name != name {
		t.Fatalf("unexpected create output %+v", views)
	}
	return views[0].ID
}

func TestApp_ExecAndInspect(t *testing.T) {
	h := newHarness(t)
	id := createDatabase(t, h, "inventory")

	out, err := h.run("", "exec", id, "CREATE TABLE items(id INTEGER PRIMARY KEY, name TEXT NOT NULL); INSERT INTO items(name) VALUES ('bolt'), ('nut')")
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !strings.Contains(out, "Query executed successfully") || !strings.Contains(out, "(2 rows affected)") {
		t.Fatalf("unexpected exec output:\n%s", out)
	}

	out, err = h.run("", "-o", "json", "exec", id, "SELECT name FROM items ORDER BY id")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	var results []struct {
		Columns []string `json:"columns"`
		Values  [][]any  `json:"values"`
	}
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("select output %q: %v", out, err)
	}
	if len(results) != 1 || results[0].Columns[0] != "name" || len(results[0].Values) != 2 || results[0].Values[1][0] != "nut" {
		t.Fatalf("unexpected select results %+v", results)
	}

	out, err = h.run("", "tables", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "items") {
		t.Fatalf("tables output:\n%s", out)
	}

	out, err = h.run("", "-o", "yaml", "columns", id, "items")
	if err != nil {
		t.Fatal(err)
	}
	var columns []map[string]any
	if err := yaml.Unmarshal([]byte(out), &columns); err != nil {
		t.Fatalf("columns output %q: %v", out, err)
	}
	if len(columns) != 2 || columns[1]["name"] != "name" || columns[1]["notNull"] != true {
		t.Fatalf("unexpected columns %+v", columns)
	}

	out, err = h.run("", "exec", id, "SELECT * FROM missing; SELECT 1")
	if err == nil {
		t.Fatal("expected exec to report the failed statement")
	}
	if !strings.Contains(out, "no such table: missing") {
		t.Fatalf("failure not printed:\n%s", out)
	}
}

func TestApp_ImportExport(t *testing.T) {
	h := newHarness(t)
	id := createDatabase(t, h, "source")
	if _, err := h.run("", "exec", id, "CREATE TABLE t(v); INSERT INTO t VALUES (42)"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "copy.sqlite")
	if _, err := h.run("", "export", "--out", path, id); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Fatalf("exported file is not a SQLite database")
	}

	out, err := h.run("", "-o", "json", "import", path)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	var views []recordView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatal(err)
	}
	if views[0].Name != "copy" || views[0].Size != len(data) {
		t.Fatalf("unexpected import %+v", views[0])
	}

	out, err = h.run("", "-o", "json", "exec", views[0].ID, "SELECT v FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "42") {
		t.Fatalf("imported data missing:\n%s", out)
	}

	junk := filepath.Join(t.TempDir(), "junk.db")
	_ = os.WriteFile(junk, bytes.Repeat([]byte("junk"), 256), 0o644)
	if _, err := h.run("", "import", junk); err == nil {
		t.Fatal("expected import of a non-database file to fail")
	}

	if _, err := h.run("", "export", "missing"); err == nil {
		t.Fatal("expected export of a missing database to fail")
	}
}

func TestApp_ListDeleteClear(t *testing.T) {
	h := newHarness(t)
	first := createDatabase(t, h, "first")
	second := createDatabase(t, h, "second")
	if _, err := h.run("", "exec", first, "CREATE TABLE t(x)"); err != nil {
		t.Fatal(err)
	}

	out, err := h.run("", "-o", "json", "list")
	if err != nil {
		t.Fatal(err)
	}
	var views []recordView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].ID != first {
		t.Fatalf("list order %+v, want %s first", views, first)
	}

	if _, err := h.run("", "delete", second, "already-gone"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := h.run("", "clear"); err == nil {
		t.Fatal("clear without --yes must fail")
	}
	if _, err := h.run("", "clear", "--yes"); err != nil {
		t.Fatal(err)
	}
	out, err = h.run("", "-o", "json", "list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("list after clear = %s", out)
	}
}

func TestApp_Shell(t *testing.T) {
	h := newHarness(t)
	id := createDatabase(t, h, "repl")
	input := strings.Join([]string{
		"CREATE TABLE s(x INTEGER,",
		"  y TEXT);",
		".tables",
		".log",
		".log debug",
		"INSERT INTO s VALUES (1, 'a;b');",
		".bogus",
		"SELECT y FROM s;",
		".quit",
		"SELECT 'not reached';",
	}, "\n")
	out, err := h.run(input, "shell", id)
	if err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	for _, want := range []string{"TABLE", "a;b", "unknown command .bogus", "log level: WARN", "log level: DEBUG"} {
		if !strings.Contains(out, want) {
			t.Errorf("shell output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "not reached") || strings.Contains(out, prompt) {
		t.Errorf("unexpected shell output:\n%s", out)
	}

	out, err = h.run("", "tables", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "s") {
		t.Fatalf("shell changes were not saved:\n%s", out)
	}
}

func TestApp_Metrics(t *testing.T) {
	h := newHarness(t)
	createDatabase(t, h, "m")
	out, err := h.run("", "metrics")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`sqlitebook_snapshot_operations_total{op="list",result="ok"} 1`,
		"sqlitebook_badger_lsm_size_bytes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q:\n%s", want, out)
		}
	}
}

func TestApp_InvalidConfig(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("", "--output", "xml", "list"); err == nil {
		t.Fatal("expected invalid output format to fail")
	}
}
