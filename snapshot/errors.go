package snapshot

import "errors"

var (
	// ErrPersist reports a backing store failure.
	ErrPersist = errors.New("snapshot: persist failed")
	// ErrImport reports that import bytes could not be read.
	ErrImport = errors.New("snapshot: import failed")
	// ErrNotFound reports a missing record where one is required.
	ErrNotFound = errors.New("snapshot: database not found")
)

// Error describes a failed store operation.
type Error struct {
	Op   string
	ID   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := "snapshot: " + e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

func persistError(op, id string, err error) error {
	return &Error{Op: op, ID: id, Kind: ErrPersist, Err: err}
}
