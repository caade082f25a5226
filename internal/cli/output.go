package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/sqlitebook/engine"
	"github.com/viant/sqlitebook/internal/config"
	"github.com/viant/sqlitebook/snapshot"
)

// Printer renders command output as a table, JSON or YAML.
type Printer struct {
	w      io.Writer
	format string
}

// NewPrinter creates a printer writing to w in format.
func NewPrinter(w io.Writer, format string) *Printer {
	return &Printer{w: w, format: format}
}

// recordView is the printed shape of a record; the snapshot bytes are
// reduced to their size.
type recordView struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Size         int       `json:"size" yaml:"size"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
}

func viewOf(r *snapshot.Record) recordView {
	return recordView{ID: r.ID, Name: r.Name, Size: len(r.Data), CreatedAt: r.CreatedAt, LastModified: r.LastModified}
}

func (p *Printer) encode(data any) (bool, error) {
	switch p.format {
	case config.FormatJSON:
		encoder := json.NewEncoder(p.w)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(data)
	case config.FormatYAML:
		encoder := yaml.NewEncoder(p.w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return true, err
		}
		return true, encoder.Close()
	}
	return false, nil
}

func (p *Printer) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// Records prints a record listing.
func (p *Printer) Records(records []*snapshot.Record) error {
	views := make([]recordView, 0, len(records))
	for _, r := range records {
		views = append(views, viewOf(r))
	}
	if ok, err := p.encode(views); ok {
		return err
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Name, fmt.Sprintf("%d", v.Size), formatTime(v.CreatedAt), formatTime(v.LastModified)})
	}
	return p.table([]string{"ID", "NAME", "SIZE", "CREATED", "MODIFIED"}, rows)
}

// Record prints a single record.
func (p *Printer) Record(record *snapshot.Record) error {
	return p.Records([]*snapshot.Record{record})
}

// Results prints statement results in order.
func (p *Printer) Results(results []*engine.Result) error {
	if ok, err := p.encode(results); ok {
		return err
	}
	for i, result := range results {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		rows := make([][]string, 0, len(result.Values))
		for _, row := range result.Values {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = v.String()
			}
			rows = append(rows, cells)
		}
		if err := p.table(result.Columns, rows); err != nil {
			return err
		}
		if result.RowsAffected != nil {
			fmt.Fprintf(p.w, "(%d rows affected)\n", *result.RowsAffected)
		}
	}
	return nil
}

// Columns prints table column metadata.
func (p *Printer) Columns(columns []engine.Column) error {
	if ok, err := p.encode(columns); ok {
		return err
	}
	rows := make([][]string, 0, len(columns))
	for _, c := range columns {
		notNull := ""
		if c.NotNull {
			notNull = "NOT NULL"
		}
		pk := ""
		if c.PrimaryKey > 0 {
			pk = fmt.Sprintf("%d", c.PrimaryKey)
		}
		def := ""
		if !c.Default.IsNull() {
			def = c.Default.String()
		}
		rows = append(rows, []string{fmt.Sprintf("%d", c.CID), c.Name, c.Type, notNull, def, pk})
	}
	return p.table([]string{"CID", "NAME", "TYPE", "NULL", "DEFAULT", "PK"}, rows)
}

// Names prints a single-column list.
func (p *Printer) Names(header string, names []string) error {
	if names == nil {
		names = []string{}
	}
	if ok, err := p.encode(names); ok {
		return err
	}
	rows := make([][]string, 0, len(names))
	for _, n := range names {
		rows = append(rows, []string{n})
	}
	return p.table([]string{header}, rows)
}
