package tables

import (
	"github.com/xuri/excelize/v2"

	"github.com/strataworks/sampleflow/pkg/errors"
)

// ExcelLoader loads XLSX workbooks. Only the first sheet is read; sample
// upload templates are single-sheet files.
type ExcelLoader struct {
	opts *options
}

// NewExcelLoader creates an XLSX loader.
func NewExcelLoader(opts ...Option) *ExcelLoader {
	return &ExcelLoader{opts: newOptions(opts...)}
}

// Load implements the Loader interface.
func (l *ExcelLoader) Load(path string, headerRow int) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &errors.StructuralError{Path: path, Message: "opening workbook", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewStructuralError(path, "workbook contains no sheets")
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &errors.StructuralError{Path: path, Message: "reading sheet rows", Err: err}
	}
	if len(records) == 0 {
		return nil, errors.NewStructuralError(path, "sheet contains no rows")
	}

	return buildTable(path, headerRow, records, l.opts)
}
