// Package engine binds a single modernc.org/sqlite database to an editing
// session. A Handle materializes a binary snapshot into a private working
// file, executes free-form statements against it, normalizes every outcome
// into a Result and exports the database back into a snapshot.
//
// Statement classification follows a fixed order: the statement is first run
// as a row-producing query; when that attempt fails the statement is executed
// directly. If both attempts fail the error of the query attempt is reported.
//
// A Handle performs no internal locking. Callers must serialize Execute,
// ExecuteBatch and Export calls on the same handle.
package engine
