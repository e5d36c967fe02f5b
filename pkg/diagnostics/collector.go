package diagnostics

// Collector accumulates diagnostics for the duration of one import run.
// It is append-only: entries are never removed or rewritten except for the
// location back-fill performed by Resolve.
//
// A Collector is not safe for concurrent use; the import pipeline is
// row-at-a-time and a run owns exactly one Collector.
type Collector struct {
	diags []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Append adds a diagnostic to the collection.
func (c *Collector) Append(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityError
	}
	c.diags = append(c.diags, d)
}

// Error appends an error-severity diagnostic.
func (c *Collector) Error(d Diagnostic) {
	d.Severity = SeverityError
	c.Append(d)
}

// Warning appends a warning-severity diagnostic.
func (c *Collector) Warning(d Diagnostic) {
	d.Severity = SeverityWarning
	c.Append(d)
}

// All returns every collected diagnostic in append order.
func (c *Collector) All() []Diagnostic {
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Filter returns the diagnostics of the given severity, in append order.
func (c *Collector) Filter(severity Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range c.diags {
		if d.Severity == severity {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	return len(c.diags)
}

// HasBlocking reports whether any collected diagnostic blocks persistence
// under the given policy. Errors always block; warnings block only when the
// caller has not opted to ignore them.
func (c *Collector) HasBlocking(ignoreWarnings bool) bool {
	for _, d := range c.diags {
		if d.Severity == SeverityError {
			return true
		}
		if d.Severity == SeverityWarning && !ignoreWarnings {
			return true
		}
	}
	return false
}

// Index holds the lookup tables Resolve uses to back-fill missing location
// fields. The caller builds it from the final parsed table once classification
// is done for every row.
type Index struct {
	// KeyColumn maps a canonical column key to its zero-based column index.
	KeyColumn map[string]int
	// ColumnKey is the reverse of KeyColumn.
	ColumnKey map[int]string
	// RowSample maps a zero-based datafile row index to the sample name
	// parsed from that row.
	RowSample map[int]string
	// SampleRow is the reverse of RowSample.
	SampleRow map[string]int
	// GroupUnitKey maps a field group's value key to its units column key,
	// for diagnostics that target a grouped subfield.
	GroupUnitKey map[string]string
}

// Resolve back-fills missing location fields on every collected diagnostic.
// For each of the pairs {row, sample name} and {column index, column key},
// a missing member is filled from the present one using the index maps.
// Already-populated fields are never overwritten.
func (c *Collector) Resolve(idx Index) {
	for i := range c.diags {
		d := &c.diags[i]

		if d.Row == nil && d.SampleName != "" {
			if row, ok := idx.SampleRow[d.SampleName]; ok {
				d.Row = IntPtr(row)
			}
		}
		if d.SampleName == "" && d.Row != nil {
			if name, ok := idx.RowSample[*d.Row]; ok {
				d.SampleName = name
			}
		}

		if d.Column == nil {
			if key := c.columnKeyFor(d, idx); key != "" {
				if col, ok := idx.KeyColumn[key]; ok {
					d.Column = IntPtr(col)
				}
			}
		}
		if d.Key == "" && d.Column != nil {
			if key, ok := idx.ColumnKey[*d.Column]; ok {
				d.Key = key
			}
		}
	}
}

// columnKeyFor determines which table column a diagnostic addresses. Grouped
// subfield diagnostics resolve through the group's units column rather than
// the primary key.
func (c *Collector) columnKeyFor(d *Diagnostic, idx Index) string {
	if d.SubKey != "" {
		if unitKey, ok := idx.GroupUnitKey[d.Key]; ok {
			return unitKey
		}
		return ""
	}
	return d.Key
}
