package tables

import (
	"encoding/csv"
	"os"

	"github.com/strataworks/sampleflow/pkg/errors"
)

// CSVLoader loads comma- or tab-delimited datafiles.
type CSVLoader struct {
	delimiter rune
	opts      *options
}

// NewCSVLoader creates a loader for the given delimiter.
func NewCSVLoader(delimiter rune, opts ...Option) *CSVLoader {
	return &CSVLoader{
		delimiter: delimiter,
		opts:      newOptions(opts...),
	}
}

// Load implements the Loader interface.
func (l *CSVLoader) Load(path string, headerRow int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = l.delimiter
	// Vendor preamble rows rarely match the header width.
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &errors.StructuralError{Path: path, Message: "parsing delimited file", Err: err}
	}
	if len(records) == 0 {
		return nil, errors.NewStructuralError(path, "file contains no rows")
	}

	return buildTable(path, headerRow, records, l.opts)
}
