// Package export renders a sample set back to spreadsheet form. Source
// metadata drives the header spellings: a controlled field exports under the
// exact header it was uploaded with, so an import/export round trip
// preserves the user's column names.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/samples"
)

// SESARBanner is the header line SESAR spreadsheets carry above the column
// row.
const SESARBanner = "Object Type:,Individual Sample,User Code:,"

// Getter is the record access the exporter needs.
type Getter interface {
	Get(ctx context.Context, id string, version *int) (*samples.Sample, samples.Ref, error)
}

// Exporter renders sample sets to CSV.
type Exporter struct {
	store    Getter
	unitKeys map[string]string
}

// New creates an Exporter. groups supplies the units column names for
// grouped fields; non-grouped units stay inline with their value.
func New(store Getter, groups []fieldgroups.Group) *Exporter {
	return &Exporter{
		store:    store,
		unitKeys: fieldgroups.UnitKeys(groups),
	}
}

// table accumulates export columns in first-seen order, one row per sample.
type table struct {
	headers []string
	columns map[string][]string
	rows    int
}

func newTable() *table {
	t := &table{columns: make(map[string][]string)}
	t.addHeader("kbase_sample_id")
	t.addHeader("sample name")
	return t
}

func (t *table) addHeader(h string) {
	if _, ok := t.columns[h]; ok {
		return
	}
	t.headers = append(t.headers, h)
	t.columns[h] = nil
}

// set writes a cell in the current row, padding the column up to it.
func (t *table) set(header, value string) {
	t.addHeader(header)
	col := t.columns[header]
	for len(col) < t.rows-1 {
		col = append(col, "")
	}
	t.columns[header] = append(col, value)
}

// pad fills every column out to the current row count.
func (t *table) pad() {
	for h, col := range t.columns {
		for len(col) < t.rows {
			col = append(col, "")
		}
		t.columns[h] = col
	}
}

// WriteCSV fetches every sample in the set and writes the rendered CSV.
// banner, when true, prepends the SESAR object-type line.
func (e *Exporter) WriteCSV(ctx context.Context, set samples.Set, banner bool, w io.Writer) error {
	t := newTable()

	for _, ref := range set.Samples {
		sample, fullRef, err := e.store.Get(ctx, ref.ID, nil)
		if err != nil {
			return errors.Wrapf(err, "fetching sample %q", ref.Name)
		}

		t.rows++
		t.set("kbase_sample_id", fullRef.ID)
		t.set("sample name", sample.Name)

		for _, node := range sample.NodeTree {
			sourceKey := make(map[string]string, len(node.SourceMeta))
			for _, sm := range node.SourceMeta {
				sourceKey[sm.Key] = sm.SourceKey
			}
			e.renderMeta(t, node.MetaControlled, sourceKey)
			e.renderMeta(t, node.MetaUser, sourceKey)
		}
		t.pad()
	}

	if banner {
		if _, err := fmt.Fprintln(w, SESARBanner); err != nil {
			return errors.Wrap(err, "writing banner")
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.headers); err != nil {
		return errors.Wrap(err, "writing header row")
	}
	for i := 0; i < t.rows; i++ {
		record := make([]string, len(t.headers))
		for j, h := range t.headers {
			record[j] = t.columns[h][i]
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// ExportFile renders the set to a CSV file at path.
func (e *Exporter) ExportFile(ctx context.Context, set samples.Set, banner bool, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("create", path, err)
	}
	defer f.Close()

	if err := e.WriteCSV(ctx, set, banner, f); err != nil {
		return err
	}
	return errors.WrapIO("close", path, f.Close())
}

// renderMeta writes one metadata map into the current row. Grouped units go
// to their own column named by the group's units key.
func (e *Exporter) renderMeta(t *table, meta map[string]samples.MetaValue, sourceKey map[string]string) {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		header, ok := sourceKey[key]
		if !ok {
			header = key
		}
		entry := meta[key]
		t.set(header, formatValue(entry.Value))
		if entry.Units != "" {
			if unitHeader, grouped := e.unitKeys[key]; grouped {
				t.set(unitHeader, entry.Units)
			}
		}
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
