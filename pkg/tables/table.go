// Package tables provides the raw tabular data model for sample uploads and
// loaders for the supported file dialects (CSV, TSV, XLSX). A loaded table is
// immutable: the import pipeline reads cells and ordinals from it but never
// writes back.
package tables

import "strconv"

// Cell is one table cell. Cells are string-backed; null tracking is explicit
// so that sentinel strings ("NA", "-", ...) and genuinely empty cells are
// indistinguishable downstream.
type Cell struct {
	raw  string
	null bool
}

// NewCell creates a non-null cell with the given raw text.
func NewCell(raw string) Cell {
	return Cell{raw: raw}
}

// NullCell creates a null cell.
func NullCell() Cell {
	return Cell{null: true}
}

// IsNull reports whether the cell holds no value.
func (c Cell) IsNull() bool {
	return c.null
}

// String returns the raw cell text. Null cells return "".
func (c Cell) String() string {
	if c.null {
		return ""
	}
	return c.raw
}

// Float attempts to parse the cell as a float64.
func (c Cell) Float() (float64, bool) {
	if c.null {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Value returns the cell's best-effort typed value: float64 when the text
// parses as a number, otherwise the raw string. Null cells return nil.
func (c Cell) Value() any {
	if c.null {
		return nil
	}
	if f, ok := c.Float(); ok {
		return f
	}
	return c.raw
}

// Row is one data row of a table. Index is the zero-based row position in
// the original datafile (header and preamble rows included), which is what
// diagnostics report back to the user.
type Row struct {
	Index int
	Cells []Cell
}

// Cell returns the cell at the given column index. Columns beyond the row's
// physical width read as null, matching ragged CSV input.
func (r Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return NullCell()
	}
	return r.Cells[col]
}

// Table is a loaded datafile: an ordered header row plus data rows.
type Table struct {
	// Path is the file the table was loaded from.
	Path string
	// HeaderRow is the zero-based datafile index of the header row.
	HeaderRow int
	// Headers holds the original header strings in column order.
	Headers []string
	// Rows holds the data rows in file order.
	Rows []Row
}

// Width returns the number of columns.
func (t *Table) Width() int {
	return len(t.Headers)
}
