// Package importer orchestrates the import pipeline: load a tabular file,
// normalize its headers, classify each row into a sample record, reconcile
// against the prior version of the sample set, and persist. Persistence is
// all-or-nothing: any blocking diagnostic anywhere in the file means no
// sample is written.
package importer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/strataworks/sampleflow/pkg/classify"
	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/fieldgroups"
	"github.com/strataworks/sampleflow/pkg/logging"
	"github.com/strataworks/sampleflow/pkg/normalize"
	"github.com/strataworks/sampleflow/pkg/ontology"
	"github.com/strataworks/sampleflow/pkg/reconcile"
	"github.com/strataworks/sampleflow/pkg/samples"
	"github.com/strataworks/sampleflow/pkg/tables"
)

// Store is the record-store access the importer needs: prior-version reads
// for reconciliation, server-side validation, and versioned writes.
type Store interface {
	reconcile.Store
	// Create persists a sample. priorID and priorVersion are empty/nil for a
	// first version and reference the superseded version otherwise.
	Create(ctx context.Context, sample *samples.Sample, priorID string, priorVersion *int) (samples.Ref, error)
	// Validate runs server-side schema validation over the batch without
	// persisting anything.
	Validate(ctx context.Context, batch []*samples.Sample) ([]diagnostics.Diagnostic, error)
}

// Params configures one import run.
type Params struct {
	// Path is the input file (.csv, .tsv, .xlsx).
	Path string
	// HeaderRow is the zero-based datafile row holding the column headers.
	HeaderRow int
	// IDField optionally overrides which canonical key supplies the sample
	// name.
	IDField string
	// KeepExisting carries prior samples absent from the input file over into
	// the produced set. The default drops them.
	KeepExisting bool
	// IgnoreWarnings lets the run proceed when only warnings were collected.
	IgnoreWarnings bool
	// Prevalidate runs server-side validation over the whole batch before any
	// write.
	Prevalidate bool
	// DryRun stops after validation and reconciliation: decisions are
	// counted, nothing is persisted, no set is produced.
	DryRun bool
	// Description annotates the produced sample set.
	Description string
	// Prior is the previously persisted version of the sample set.
	Prior []samples.Ref
	// RenamePolicy controls explicit-ID renames; defaults to reject.
	RenamePolicy reconcile.RenamePolicy
	// NullValues overrides the null sentinel list applied while loading.
	NullValues []string

	// Normalize holds the dialect's header tables.
	Normalize normalize.Config
	// Groups resolves grouped value/units fields; may be nil.
	Groups *fieldgroups.Resolver
	// UnitRules capture units from unrecognized column headers.
	UnitRules []classify.UnitRule
	// Ontology resolves ontology-controlled fields; may be nil.
	Ontology *ontology.Resolver
	// Controlled is the validator schema key set.
	Controlled map[string]bool
	// DateKeys are canonical keys holding calendar dates.
	DateKeys map[string]bool
}

// Result is the outcome of an import run. Diagnostics are populated on both
// success and validation failure.
type Result struct {
	// Set is the produced sample set: imported refs in file order, then
	// carried-over refs. Empty when the run was blocked.
	Set samples.Set
	// Diagnostics are all collected diagnostics, positions back-filled.
	Diagnostics []diagnostics.Diagnostic
	// Table is the parsed input, returned even on blocked runs so callers
	// can render diagnostics against it.
	Table *tables.Table

	Created     int
	NewVersions int
	Unchanged   int
	CarriedOver int
}

// Importer runs import pipelines against one store.
type Importer struct {
	store  Store
	logger *zerolog.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger overrides the importer's logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(i *Importer) {
		i.logger = logger
	}
}

// New creates an Importer backed by the given store.
func New(store Store, opts ...Option) *Importer {
	i := &Importer{
		store:  store,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// plan is one row's pending persistence action.
type plan struct {
	sample   *samples.Sample
	decision reconcile.Decision
	row      int
}

// Run executes one import. A returned validation error carries the full
// diagnostic list in the Result; nothing was persisted. Other errors
// (unreadable file, empty header list, store failures during persistence)
// are returned as-is.
func (i *Importer) Run(ctx context.Context, p Params) (*Result, error) {
	log := i.logger.With().Str("path", p.Path).Str("dialect", p.Normalize.Dialect).Logger()

	var loadOpts []tables.Option
	if p.NullValues != nil {
		loadOpts = append(loadOpts, tables.WithNullValues(p.NullValues))
	}
	table, err := tables.Open(p.Path, p.HeaderRow, loadOpts...)
	if err != nil {
		return nil, err
	}
	log.Info().Int("rows", len(table.Rows)).Int("columns", len(table.Headers)).Msg("loaded table")

	col := diagnostics.NewCollector()

	columns, headerDiags, err := normalize.New(p.Normalize).Normalize(table.Headers)
	if err != nil {
		return nil, err
	}
	for _, d := range headerDiags {
		col.Append(d)
	}

	classifier := classify.New(classify.Params{
		Columns:    columns,
		Groups:     p.Groups,
		UnitRules:  p.UnitRules,
		Ontology:   p.Ontology,
		Controlled: p.Controlled,
		DateKeys:   p.DateKeys,
		IDField:    p.IDField,
	})

	if !normalize.Keys(columns)[classifier.NameKey()] {
		return nil, errors.NewStructuralError(p.Path,
			fmt.Sprintf("no %q column: cannot identify samples", classifier.NameKey()))
	}

	rec := reconcile.New(i.store, reconcile.WithRenamePolicy(p.RenamePolicy))
	priorByName := samples.NamesByRef(p.Prior)

	plans, rowName := i.classifyRows(ctx, table, classifier, rec, priorByName, col)

	if p.Prevalidate && len(plans) > 0 {
		batch := make([]*samples.Sample, len(plans))
		for n, pl := range plans {
			batch[n] = pl.sample
		}
		validateDiags, err := i.store.Validate(ctx, batch)
		if err != nil {
			return nil, errors.Wrap(err, "prevalidating batch")
		}
		for _, d := range validateDiags {
			col.Append(d)
		}
	}

	// Positions back-fill regardless of outcome, so blocked runs report
	// fully located diagnostics too.
	col.Resolve(buildIndex(columns, rowName, classifier.ActiveGroups()))

	res := &Result{Diagnostics: col.All(), Table: table}

	if col.HasBlocking(p.IgnoreWarnings) {
		n := len(col.Filter(diagnostics.SeverityError))
		if !p.IgnoreWarnings {
			n += len(col.Filter(diagnostics.SeverityWarning))
		}
		log.Warn().Int("blocking", n).Int("diagnostics", col.Len()).Msg("import blocked")
		return res, errors.Wrapf(errors.ErrInvalidInput, "import blocked by %d diagnostic(s); nothing was saved", n)
	}

	if p.DryRun {
		for _, pl := range plans {
			switch pl.decision.Action {
			case reconcile.ActionNoop:
				res.Unchanged++
			case reconcile.ActionCreate:
				res.Created++
			case reconcile.ActionNewVersion:
				res.NewVersions++
			}
		}
		log.Info().Int("samples", len(plans)).Msg("dry run: validation passed, nothing saved")
		return res, nil
	}

	if err := i.persist(ctx, plans, res, &log); err != nil {
		return res, err
	}

	imported := make(map[string]bool, len(plans))
	for _, pl := range plans {
		imported[pl.sample.Name] = true
	}
	carried := reconcile.CarryOver(priorByName, imported, p.KeepExisting)
	res.Set.Samples = append(res.Set.Samples, carried...)
	res.Set.Description = p.Description
	res.CarriedOver = len(carried)

	log.Info().
		Int("created", res.Created).
		Int("new_versions", res.NewVersions).
		Int("unchanged", res.Unchanged).
		Int("carried_over", res.CarriedOver).
		Msg("import complete")

	return res, nil
}

// classifyRows classifies and reconciles every data row, returning the
// persistence plan for the rows that survived and the row-to-name map for
// diagnostic back-fill.
func (i *Importer) classifyRows(ctx context.Context, table *tables.Table, classifier *classify.Classifier,
	rec *reconcile.Reconciler, priorByName map[string]samples.Ref, col *diagnostics.Collector) ([]plan, map[int]string) {

	var plans []plan
	rowName := make(map[int]string)
	firstRow := make(map[string]int)

	for _, row := range table.Rows {
		res, ok := classifier.Classify(ctx, row, col)
		if res.Name != "" {
			rowName[row.Index] = res.Name
		}
		if !ok {
			continue
		}

		if prev, dup := firstRow[res.Name]; dup {
			col.Error(diagnostics.Diagnostic{
				Message:    fmt.Sprintf("duplicate sample name %q: already used at row %d", res.Name, prev),
				SampleName: res.Name,
				Row:        diagnostics.IntPtr(row.Index),
			})
			continue
		}
		firstRow[res.Name] = row.Index

		sample := res.Sample()
		dec, ok := rec.Reconcile(ctx, sample, res.SampleID, priorByName, col, row.Index)
		if !ok {
			continue
		}
		plans = append(plans, plan{sample: sample, decision: dec, row: row.Index})
	}

	return plans, rowName
}

// persist writes the planned actions in file order.
func (i *Importer) persist(ctx context.Context, plans []plan, res *Result, log *zerolog.Logger) error {
	for _, pl := range plans {
		switch pl.decision.Action {
		case reconcile.ActionNoop:
			res.Set.Samples = append(res.Set.Samples, *pl.decision.Prior)
			res.Unchanged++

		case reconcile.ActionCreate:
			ref, err := i.store.Create(ctx, pl.sample, "", nil)
			if err != nil {
				return errors.Wrapf(err, "saving sample %q (row %d)", pl.sample.Name, pl.row)
			}
			res.Set.Samples = append(res.Set.Samples, ref)
			res.Created++

		case reconcile.ActionNewVersion:
			prior := pl.decision.Prior
			ref, err := i.store.Create(ctx, pl.sample, prior.ID, &prior.Version)
			if err != nil {
				return errors.Wrapf(err, "saving new version of sample %q (row %d)", pl.sample.Name, pl.row)
			}
			res.Set.Samples = append(res.Set.Samples, ref)
			res.NewVersions++
			log.Debug().Str("sample", pl.sample.Name).Str("id", ref.ID).Int("version", ref.Version).
				Msg("saved new version")
		}
	}
	return nil
}

// buildIndex assembles the position-resolution index for diagnostic
// back-fill.
func buildIndex(columns []normalize.Column, rowName map[int]string, groups []fieldgroups.Group) diagnostics.Index {
	idx := diagnostics.Index{
		KeyColumn:    make(map[string]int, len(columns)),
		ColumnKey:    make(map[int]string, len(columns)),
		RowSample:    rowName,
		SampleRow:    make(map[string]int, len(rowName)),
		GroupUnitKey: fieldgroups.UnitKeys(groups),
	}
	for _, c := range columns {
		if _, ok := idx.KeyColumn[c.Key]; !ok {
			idx.KeyColumn[c.Key] = c.Index
		}
		idx.ColumnKey[c.Index] = c.Key
	}
	for row, name := range rowName {
		if prev, ok := idx.SampleRow[name]; !ok || row < prev {
			idx.SampleRow[name] = row
		}
	}
	return idx
}
