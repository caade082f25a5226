package engine

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const driverName = "sqlite"

var registerOnce sync.Once

// Open opens a SQLite database using the modernc.org/sqlite driver with the
// sqlitebook SQL functions registered.
//
// For file-based databases, pass a path like "./db.sqlite". For in-memory
// databases, pass ":memory:". Note that every pooled connection to ":memory:"
// sees its own database; use SetMaxOpenConns(1) when that matters.
func Open(dsn string) (*sql.DB, error) {
	registerOnce.Do(registerFunctions)
	return sql.Open(driverName, dsn)
}

// serializer is implemented by driver connections able to copy the main
// database image out of the pager.
type serializer interface {
	Serialize() ([]byte, error)
}

// materialize writes snapshot into a fresh working directory under root and
// returns the directory and the database file path.
func materialize(root string, snapshot []byte) (dir, path string, err error) {
	dir, err = os.MkdirTemp(root, "sqlitebook-*")
	if err != nil {
		return "", "", err
	}
	path = filepath.Join(dir, "main.db")
	if err = os.WriteFile(path, snapshot, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}

// quoteLiteral returns s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteIdentifier returns name as a double-quoted SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
