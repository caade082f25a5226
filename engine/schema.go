package engine

import (
	"context"
	"fmt"
)

const tablesQuery = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

// Column describes one column of a table as reported by PRAGMA table_info.
type Column struct {
	CID        int64  `json:"cid" yaml:"cid"`
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	NotNull    bool   `json:"notNull" yaml:"notNull"`
	Default    Value  `json:"default" yaml:"default"`
	PrimaryKey int64  `json:"pk" yaml:"pk"`
}

// Tables returns the names of user tables ordered by name.
func (h *Handle) Tables(ctx context.Context) ([]string, error) {
	result, err := h.Execute(ctx, tablesQuery)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Values))
	for _, row := range result.Values {
		if len(row) == 0 {
			continue
		}
		name, _ := row[0].Text()
		names = append(names, name)
	}
	return names, nil
}

// Columns returns the column metadata of table in declaration order. An
// unknown table yields no columns.
func (h *Handle) Columns(ctx context.Context, table string) ([]Column, error) {
	result, err := h.Execute(ctx, "PRAGMA table_info("+quoteIdentifier(table)+")")
	if err != nil {
		return nil, err
	}
	if len(result.Columns) != 6 {
		return nil, fmt.Errorf("engine: unexpected table_info shape %v", result.Columns)
	}
	columns := make([]Column, 0, len(result.Values))
	for _, row := range result.Values {
		cid, _ := row[0].Int()
		name, _ := row[1].Text()
		typ, _ := row[2].Text()
		notNull, _ := row[3].Int()
		pk, _ := row[5].Int()
		columns = append(columns, Column{
			CID:        cid,
			Name:       name,
			Type:       typ,
			NotNull:    notNull != 0,
			Default:    row[4],
			PrimaryKey: pk,
		})
	}
	return columns, nil
}
