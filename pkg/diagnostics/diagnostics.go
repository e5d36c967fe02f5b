// Package diagnostics collects located, severity-tagged errors and warnings
// produced while importing a sample file. Diagnostics are created with
// whatever location information is available at the point of failure —
// sometimes a sample name but no row, sometimes a column key but no column
// index — and a final resolution pass back-fills the missing half of each
// pair from lookup tables built off the parsed table.
package diagnostics

import "fmt"

// Severity classifies a diagnostic as blocking or advisory.
type Severity string

// Supported severities.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic describes one problem found at a position in an uploaded
// datafile. Both the sample-name/key and row/column addressing schemes are
// carried because either may be what the user needs to find the cell; all
// location fields are optional since not every call site knows all of them.
type Diagnostic struct {
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	SampleName string   `json:"sample_name,omitempty"`
	Node       string   `json:"node,omitempty"`
	Key        string   `json:"key,omitempty"`
	SubKey     string   `json:"subkey,omitempty"`
	Row        *int     `json:"row,omitempty"`
	Column     *int     `json:"column,omitempty"`
}

// LocatedMessage renders the diagnostic with its position prefix in the form
// "(sample,key)[row,column]: message". Unknown parts render empty.
func (d *Diagnostic) LocatedMessage() string {
	sample := d.SampleName
	key := d.Key
	row := ""
	if d.Row != nil {
		row = fmt.Sprintf("%d", *d.Row)
	}
	column := ""
	if d.Column != nil {
		column = fmt.Sprintf("%d", *d.Column)
	}
	return fmt.Sprintf("(%s,%s)[%s,%s]: %s", sample, key, row, column, d.Message)
}

// ColumnName returns the table column key the diagnostic points at, which is
// the primary key unless the diagnostic targets a grouped subfield (units),
// in which case the column must be resolved through the group definition.
func (d *Diagnostic) ColumnName() string {
	if d.SubKey != "" {
		return ""
	}
	return d.Key
}

// IntPtr returns a pointer to v. Convenience for populating Row/Column.
func IntPtr(v int) *int {
	return &v
}
