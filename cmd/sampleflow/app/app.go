// Package app provides the application context and dependency management for
// the sampleflow CLI: configuration, logging, and lazily constructed service
// clients.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/strataworks/sampleflow/internal/recordstore"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/importer"
	"github.com/strataworks/sampleflow/pkg/logging"
	"github.com/strataworks/sampleflow/pkg/ontology"
)

// App is the sampleflow application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger

	// Record store, lazy-initialized.
	mu    sync.Mutex
	store importer.Store
	local *recordstore.LocalStore
}

// New creates an App with the given version information.
func New(version, commit, date string) (*App, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	logger := NewLogger(config)
	return &App{
		version: version,
		commit:  commit,
		date:    date,
		config:  config,
		logger:  &logger,
	}, nil
}

// Version returns the version string.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Store returns the record store, constructing it on first use: the local
// sqlite store when a path is configured, the remote client otherwise, with
// its URL discovered through the service wizard when not set directly.
func (a *App) Store(ctx context.Context) (importer.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store != nil {
		return a.store, nil
	}

	svc := a.config.Services()
	if err := svc.Validate(); err != nil {
		return nil, err
	}

	if svc.LocalStorePath != "" {
		local, err := recordstore.OpenLocal(svc.LocalStorePath)
		if err != nil {
			return nil, err
		}
		a.local = local
		a.store = local
		a.logger.Debug().Str("path", svc.LocalStorePath).Msg("using local record store")
		return a.store, nil
	}

	url := svc.SampleServiceURL
	if url == "" {
		discovered, err := recordstore.DiscoverURL(ctx, svc.ServiceWizardURL)
		if err != nil {
			return nil, errors.Wrap(err, "discovering record store URL")
		}
		url = discovered
		a.logger.Debug().Str("url", url).Msg("discovered record store")
	}

	a.store = recordstore.NewClient(url, svc.Token)
	return a.store, nil
}

// Ontology returns the ontology service client, or nil when no endpoint is
// configured.
func (a *App) Ontology() ontology.Service {
	if a.config.OntologyURL == "" {
		return nil
	}
	return ontology.NewClient(a.config.OntologyURL)
}

// Shutdown releases held resources.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.local != nil {
		err := a.local.Close()
		a.local = nil
		a.store = nil
		return err
	}
	return nil
}

// NewLogger builds the application logger from config and installs it as the
// package default.
func NewLogger(config *Config) zerolog.Logger {
	level := config.LogLevel
	if config.Verbose {
		level = "debug"
	}
	if config.Quiet {
		level = "warn"
	}

	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:   level,
		Format:  config.LogFormat,
		Output:  config.LogOutput,
		NoColor: config.NoColor,
	})
	logging.SetDefault(logger)
	return logger
}
