package engine

const (
	// ResultColumn is the synthetic column reported for non-row statements.
	ResultColumn = "Result"
	// ErrorColumn is the synthetic column reported for failed batch entries.
	ErrorColumn = "Error"
	// SuccessMessage is the single cell reported for non-row statements.
	SuccessMessage = "Query executed successfully"
)

// Result is the normalized outcome of one statement.
type Result struct {
	// Columns holds column names in engine order.
	Columns []string `json:"columns" yaml:"columns"`
	// Values holds the materialized rows.
	Values [][]Value `json:"values" yaml:"values"`
	// RowsAffected is set only for statements that do not return rows.
	RowsAffected *int64 `json:"rowsAffected,omitempty" yaml:"rowsAffected,omitempty"`

	err error
}

// Err returns the statement error of a failed batch entry, nil otherwise.
func (r *Result) Err() error { return r.err }

// Failed reports whether the result stands for a failed statement.
func (r *Result) Failed() bool { return r.err != nil }

// executed builds the synthetic result of a successful non-row statement.
func executed(affected int64) *Result {
	return &Result{
		Columns:      []string{ResultColumn},
		Values:       [][]Value{{Text(SuccessMessage)}},
		RowsAffected: &affected,
	}
}

// failed builds the synthetic result of a statement that failed in a batch.
func failed(err error) *Result {
	return &Result{
		Columns: []string{ErrorColumn},
		Values:  [][]Value{{Text(err.Error())}},
		err:     err,
	}
}
