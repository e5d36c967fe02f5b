package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/strataworks/sampleflow/internal/config"
)

// Config holds the application configuration loaded from flags, environment
// variables, .env files, and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Service endpoints
	SampleServiceURL string
	ServiceWizardURL string
	OntologyURL      string
	WorkspaceURL     string
	Token            string
	Timeout          time.Duration
	LocalStorePath   string

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// command-line flags (applied by cobra later), environment variables, .env
// files, config file (~/.sampleflow.yaml), defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	for _, key := range []string{"KBASE_AUTH_TOKEN", "SAMPLE_SERVICE_URL", "SERVICE_WIZARD_URL", "ONTOLOGY_URL", "WORKSPACE_URL"} {
		_ = viper.BindEnv(key)
	}

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sampleflow")
	}
	_ = viper.ReadInConfig()

	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),

		ConfigFile: viper.ConfigFileUsed(),

		SampleServiceURL: viper.GetString("sample_service_url"),
		ServiceWizardURL: viper.GetString("service_wizard_url"),
		OntologyURL:      viper.GetString("ontology_url"),
		WorkspaceURL:     viper.GetString("workspace_url"),
		Token:            viper.GetString("kbase_auth_token"),
		Timeout:          viper.GetDuration("timeout"),
		LocalStorePath:   viper.GetString("local_store"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return cfg, nil
}

// Services returns the service endpoint configuration.
func (c *Config) Services() config.ServiceConfig {
	return config.ServiceConfig{
		SampleServiceURL: c.SampleServiceURL,
		ServiceWizardURL: c.ServiceWizardURL,
		OntologyURL:      c.OntologyURL,
		WorkspaceURL:     c.WorkspaceURL,
		Token:            c.Token,
		Timeout:          c.Timeout,
		LocalStorePath:   c.LocalStorePath,
	}
}

// UpdateFromFlags applies parsed persistent flags, which take precedence
// over config file and env values.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files; .env.local
// overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
