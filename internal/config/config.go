package config

import (
	"time"

	"github.com/strataworks/sampleflow/pkg/errors"
)

// ImportConfig is the value object describing one import or validate run.
// It is constructed by the caller (CLI flags, env) and passed down; nothing
// in the pipeline reads configuration ambiently.
type ImportConfig struct {
	// File is the input path (.csv, .tsv, .xlsx).
	File string
	// Dialect selects a built-in template ("sesar", "enigma").
	Dialect string
	// TemplateFile optionally overrides the built-in template.
	TemplateFile string
	// HeaderRow is the zero-based datafile row holding the headers.
	HeaderRow int
	// IDField optionally overrides the sample-name column key.
	IDField string
	// KeepExisting carries prior samples absent from the file over into the
	// produced set.
	KeepExisting bool
	// IgnoreWarnings lets a run proceed when only warnings were collected.
	IgnoreWarnings bool
	// Prevalidate runs server-side validation before persistence.
	Prevalidate bool
	// AcceptRenames saves explicit-ID renames as new versions instead of
	// rejecting them.
	AcceptRenames bool
	// Description annotates the produced sample set.
	Description string
	// NullValues overrides the null sentinel list.
	NullValues []string
}

// Validate checks the run configuration.
func (c ImportConfig) Validate() error {
	if c.File == "" {
		return errors.NewConfigError("import", "no input file given", nil)
	}
	if c.Dialect == "" && c.TemplateFile == "" {
		return errors.NewConfigError("import", "no dialect or template file given", nil)
	}
	if c.HeaderRow < 0 {
		return errors.NewConfigError("import", "header row cannot be negative", nil)
	}
	return nil
}

// ServiceConfig holds the external service endpoints and credentials.
type ServiceConfig struct {
	// SampleServiceURL is the record store's JSON-RPC endpoint. Discovered
	// through the service wizard when empty and ServiceWizardURL is set.
	SampleServiceURL string
	// ServiceWizardURL is the dynamic-service discovery endpoint.
	ServiceWizardURL string
	// OntologyURL is the ontology API's JSON-RPC endpoint.
	OntologyURL string
	// WorkspaceURL is the workspace service endpoint, for permission queries.
	WorkspaceURL string
	// Token is the bearer token sent to all services.
	Token string
	// Timeout bounds each service call.
	Timeout time.Duration
	// LocalStorePath, when set, selects the sqlite-backed local store
	// instead of the remote record store.
	LocalStorePath string
}

// Validate checks that some record store is reachable.
func (c ServiceConfig) Validate() error {
	if c.LocalStorePath == "" && c.SampleServiceURL == "" && c.ServiceWizardURL == "" {
		return errors.NewConfigError("services",
			"no record store configured: set a sample service URL, a service wizard URL, or a local store path", nil)
	}
	return nil
}
