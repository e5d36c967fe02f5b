package tables

import (
	"path/filepath"
	"strings"

	"github.com/strataworks/sampleflow/pkg/errors"
)

// DefaultNullValues are the literal strings treated as null cells,
// case-insensitively, in every supported dialect.
var DefaultNullValues = []string{"", "na", "n/a", "nan", "-", "--"}

// Loader loads a datafile into a Table, preserving row ordinals for
// diagnostics.
type Loader interface {
	Load(path string, headerRow int) (*Table, error)
}

// Option configures a loader.
type Option func(*options)

type options struct {
	nullValues []string
}

// WithNullValues overrides the set of literal strings treated as null.
func WithNullValues(values []string) Option {
	return func(o *options) {
		o.nullValues = values
	}
}

func newOptions(opts ...Option) *options {
	o := &options{nullValues: DefaultNullValues}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// nullSet builds the case-folded sentinel lookup.
func (o *options) nullSet() map[string]bool {
	set := make(map[string]bool, len(o.nullValues))
	for _, v := range o.nullValues {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

// cell converts one raw string into a Cell, applying sentinel nulling.
func (o *options) cell(raw string, nulls map[string]bool) Cell {
	trimmed := strings.TrimSpace(raw)
	if nulls[strings.ToLower(trimmed)] {
		return NullCell()
	}
	return NewCell(trimmed)
}

// Open loads a sample datafile, choosing the loader from the file extension.
// headerRow is the zero-based index of the header row; rows above it are
// preamble (vendor banners and the like) and are skipped.
func Open(path string, headerRow int, opts ...Option) (*Table, error) {
	var loader Loader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		loader = NewCSVLoader(',', opts...)
	case ".tsv":
		loader = NewCSVLoader('\t', opts...)
	case ".xlsx", ".xlsm":
		loader = NewExcelLoader(opts...)
	case ".xls":
		return nil, errors.NewStructuralError(path, "legacy .xls workbooks are not supported; convert to .xlsx")
	default:
		return nil, errors.NewStructuralError(path, "unsupported file extension")
	}
	return loader.Load(path, headerRow)
}

// buildTable assembles a Table from raw records, applying the header row
// offset, padding ragged rows, and dropping fully empty trailing rows.
func buildTable(path string, headerRow int, records [][]string, o *options) (*Table, error) {
	if headerRow < 0 || headerRow >= len(records) {
		return nil, errors.NewStructuralError(path, "header row index out of range")
	}

	headers := make([]string, 0, len(records[headerRow]))
	for _, h := range records[headerRow] {
		headers = append(headers, strings.TrimSpace(h))
	}
	// Trailing unnamed columns are spreadsheet artifacts, not data.
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return nil, errors.NewStructuralError(path, "empty header row")
	}

	nulls := o.nullSet()
	table := &Table{
		Path:      path,
		HeaderRow: headerRow,
		Headers:   headers,
	}

	for i := headerRow + 1; i < len(records); i++ {
		cells := make([]Cell, len(headers))
		empty := true
		for col := range headers {
			var raw string
			if col < len(records[i]) {
				raw = records[i][col]
			}
			cells[col] = o.cell(raw, nulls)
			if !cells[col].IsNull() {
				empty = false
			}
		}
		if empty {
			continue
		}
		table.Rows = append(table.Rows, Row{Index: i, Cells: cells})
	}

	return table, nil
}
