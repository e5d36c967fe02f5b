package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataworks/sampleflow/internal/access"
	"github.com/strataworks/sampleflow/internal/config"
	"github.com/strataworks/sampleflow/internal/export"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/importer"
	"github.com/strataworks/sampleflow/pkg/samples"
)

// importFlags are the flags shared by import and validate.
type importFlags struct {
	dialect        string
	template       string
	headerRow      int
	idField        string
	keepExisting   bool
	ignoreWarnings bool
	prevalidate    bool
	acceptRenames  bool
	description    string
	priorFile      string
	outputFile     string
	workspaceID    int
	owner          string
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dialect, "dialect", "d", "sesar", "input dialect: sesar, enigma")
	cmd.Flags().StringVar(&f.template, "template", "", "custom dialect template file (overrides --dialect)")
	cmd.Flags().IntVar(&f.headerRow, "header-row", 0, "zero-based row holding the column headers")
	cmd.Flags().StringVar(&f.idField, "id-field", "", "column key to use as the sample name")
	cmd.Flags().BoolVar(&f.keepExisting, "keep-existing", false, "carry prior samples absent from the file over into the set")
	cmd.Flags().BoolVar(&f.ignoreWarnings, "ignore-warnings", false, "proceed when only warnings were collected")
	cmd.Flags().BoolVar(&f.prevalidate, "prevalidate", false, "run server-side validation before saving")
	cmd.Flags().BoolVar(&f.acceptRenames, "accept-renames", false, "save explicit-ID renames as new versions instead of rejecting them")
	cmd.Flags().StringVar(&f.description, "description", "", "description for the produced sample set")
	cmd.Flags().StringVar(&f.priorFile, "prior", "", "JSON file holding the prior sample set")
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "write the produced sample set JSON here")
	cmd.Flags().IntVar(&f.workspaceID, "workspace-id", 0, "propagate this workspace's sharing to the saved samples")
	cmd.Flags().StringVar(&f.owner, "owner", "", "sample owner to skip when propagating workspace sharing")
}

func (f *importFlags) importConfig(file string) config.ImportConfig {
	return config.ImportConfig{
		File:           file,
		Dialect:        f.dialect,
		TemplateFile:   f.template,
		HeaderRow:      f.headerRow,
		IDField:        f.idField,
		KeepExisting:   f.keepExisting,
		IgnoreWarnings: f.ignoreWarnings,
		Prevalidate:    f.prevalidate,
		AcceptRenames:  f.acceptRenames,
		Description:    f.description,
	}
}

// NewImportCommand creates the import command.
func (a *App) NewImportCommand() *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a sample file into the record store",
		Long: `Import parses a tabular sample file, reconciles every row against the
prior sample set, and persists the result. Nothing is saved unless the whole
file is clean (or --ignore-warnings is given and only warnings remain).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, flags, args[0], false)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewValidateCommand creates the validate command: a full dry run.
func (a *App) NewValidateCommand() *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a sample file without saving anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImport(cmd, flags, args[0], true)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *App) runImport(cmd *cobra.Command, flags *importFlags, file string, dryRun bool) error {
	ctx := cmd.Context()

	ic := flags.importConfig(file)
	if err := ic.Validate(); err != nil {
		return err
	}

	dialect, err := config.LoadDialect(ic.Dialect, ic.TemplateFile)
	if err != nil {
		return err
	}

	store, err := a.Store(ctx)
	if err != nil {
		return err
	}

	params := dialect.ImporterParams(ic, a.Ontology())
	params.DryRun = dryRun
	if flags.priorFile != "" {
		prior, err := readSetFile(flags.priorFile)
		if err != nil {
			return err
		}
		params.Prior = prior.Samples
	}

	imp := importer.New(store, importer.WithLogger(a.logger))
	res, runErr := imp.Run(ctx, params)

	if res != nil {
		for _, d := range res.Diagnostics {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d.Severity, d.LocatedMessage())
		}
	}
	if runErr != nil {
		return runErr
	}

	if dryRun {
		a.logger.Info().
			Int("would_create", res.Created).
			Int("would_update", res.NewVersions).
			Int("unchanged", res.Unchanged).
			Msg("validation passed")
		return nil
	}

	if flags.outputFile != "" {
		if err := writeSetFile(flags.outputFile, res.Set); err != nil {
			return err
		}
	}
	a.logger.Info().
		Int("created", res.Created).
		Int("new_versions", res.NewVersions).
		Int("unchanged", res.Unchanged).
		Int("carried_over", res.CarriedOver).
		Msg("import saved")

	if flags.workspaceID != 0 {
		return a.propagateACLs(ctx, store, flags.workspaceID, flags.owner, res.Set.Samples)
	}
	return nil
}

// propagateACLs replaces the ACLs of the saved samples with the workspace's
// current sharing. Only the remote record store supports ACLs.
func (a *App) propagateACLs(ctx context.Context, store importer.Store,
	workspaceID int, owner string, refs []samples.Ref) error {

	updater, ok := store.(access.ACLUpdater)
	if !ok {
		return errors.NewConfigError("access", "the local record store has no ACLs; --workspace-id needs the remote store", nil)
	}
	if a.config.WorkspaceURL == "" {
		return errors.NewConfigError("access", "workspace service URL is required for --workspace-id", nil)
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	src := access.NewWorkspaceClient(a.config.WorkspaceURL, a.config.Token)
	if err := access.Propagate(ctx, src, updater, workspaceID, owner, ids); err != nil {
		return errors.Wrap(err, "propagating workspace sharing")
	}
	a.logger.Info().
		Int("workspace", workspaceID).
		Int("samples", len(ids)).
		Msg("workspace sharing propagated")
	return nil
}

// NewExportCommand creates the export command.
func (a *App) NewExportCommand() *cobra.Command {
	var (
		dialectName string
		outputFile  string
	)
	cmd := &cobra.Command{
		Use:   "export SET_FILE",
		Short: "Export a sample set back to CSV",
		Long: `Export fetches every sample in the given set JSON file and renders a CSV
using the original upload headers recorded in each sample's source metadata.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			set, err := readSetFile(args[0])
			if err != nil {
				return err
			}
			dialect, err := config.LoadDialect(dialectName, "")
			if err != nil {
				return err
			}
			store, err := a.Store(ctx)
			if err != nil {
				return err
			}

			e := export.New(store, dialect.Groups.Groups())
			banner := dialect.Name == "sesar"
			if outputFile == "" {
				return e.WriteCSV(ctx, set, banner, cmd.OutOrStdout())
			}
			if err := e.ExportFile(ctx, set, banner, outputFile); err != nil {
				return err
			}
			a.logger.Info().Str("path", outputFile).Int("samples", len(set.Samples)).Msg("exported sample set")
			return nil
		},
	}
	cmd.Flags().StringVarP(&dialectName, "dialect", "d", "sesar", "output dialect: sesar, enigma")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output CSV path (stdout when omitted)")
	return cmd
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sampleflow %s (commit %s, built %s)\n", a.version, a.commit, a.date)
		},
	}
}

// readSetFile reads a sample set JSON file.
func readSetFile(path string) (samples.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return samples.Set{}, errors.WrapIO("read", path, err)
	}
	var set samples.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return samples.Set{}, errors.Wrapf(err, "parsing sample set %s", path)
	}
	return set, nil
}

// writeSetFile writes a sample set as indented JSON.
func writeSetFile(path string, set samples.Set) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding sample set")
	}
	return errors.WrapIO("write", path, os.WriteFile(path, append(data, '\n'), 0o644))
}
