package engine

import "errors"

var (
	// ErrEngineInit reports that a database could not be constructed from a
	// snapshot, typically because the bytes are not a SQLite database.
	ErrEngineInit = errors.New("engine: init failed")
	// ErrNotInitialized reports an operation on a handle that is not open.
	ErrNotInitialized = errors.New("engine: not initialized")
	// ErrAlreadyOpen reports an Open call on a handle that is already open.
	ErrAlreadyOpen = errors.New("engine: already open")
	// ErrStatement reports that a statement failed both execution paths.
	ErrStatement = errors.New("engine: statement failed")
)

// InitError wraps the cause of a failed Open.
type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "engine: init failed: " + e.Err.Error() }

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrEngineInit }

// StatementError carries the error of the row-producing attempt of a
// statement whose fallback execution failed as well. Its message is exactly
// the engine message of that first attempt.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string { return e.Err.Error() }

func (e *StatementError) Unwrap() error { return e.Err }

func (e *StatementError) Is(target error) bool { return target == ErrStatement }
