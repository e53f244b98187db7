// Package config loads voicejournal configuration from a JSON or YAML file
// overlaid with environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soypete/voicejournal/pkg/logging"
)

// Store drivers
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverFirestore = "firestore"
)

// STT backends
const (
	BackendOpenAI     = "openai"
	BackendWhisperCpp = "whispercpp"
)

// DefaultFiles are searched, in order, when no path is given.
var DefaultFiles = []string{"voicejournal.yaml", "voicejournal.yml", "voicejournal.json", ".voicejournal.json"}

// Config represents the voicejournal configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	STT     STTConfig     `json:"stt" yaml:"stt"`
	Summary SummaryConfig `json:"summary" yaml:"summary"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   int      `json:"port" yaml:"port"`
	AllowedOrigins         []string `json:"allowed_origins" yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// STTConfig selects and configures the speech-to-text backend
type STTConfig struct {
	Backend    string `json:"backend" yaml:"backend"` // "openai" or "whispercpp"
	APIKey     string `json:"api_key" yaml:"api_key"`
	BaseURL    string `json:"base_url" yaml:"base_url"`
	Model      string `json:"model" yaml:"model"`
	Language   string `json:"language" yaml:"language"`
	WhisperURL string `json:"whisper_url" yaml:"whisper_url"`
}

// SummaryConfig configures the chat model that summarizes transcripts
type SummaryConfig struct {
	Disabled    bool    `json:"disabled" yaml:"disabled"`
	APIKey      string  `json:"api_key" yaml:"api_key"` // Falls back to stt.api_key
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
}

// StoreConfig selects the journal store
type StoreConfig struct {
	Driver    string          `json:"driver" yaml:"driver"` // memory, postgres, sqlite or firestore
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Firestore FirestoreConfig `json:"firestore" yaml:"firestore"`
}

// DatabaseConfig is used by the postgres and sqlite drivers
type DatabaseConfig struct {
	URL      string `json:"url" yaml:"url"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Database string `json:"database" yaml:"database"` // Database name or SQLite file path
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	SSLMode  string `json:"ssl_mode" yaml:"ssl_mode"`
}

type FirestoreConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	Collection      string `json:"collection" yaml:"collection"`
}

// ArchiveConfig enables raw audio archiving when Bucket is set
type ArchiveConfig struct {
	Bucket    string `json:"bucket" yaml:"bucket"`
	Region    string `json:"region" yaml:"region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// EventsConfig enables NATS entry events when NatsURL is set
type EventsConfig struct {
	NatsURL string `json:"nats_url" yaml:"nats_url"`
	Subject string `json:"subject" yaml:"subject"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "json" or "text"
}

// Load loads configuration from a file, then applies the environment,
// defaults and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return parse(data, filepath.Ext(path), os.Getenv)
}

// LoadDefault loads the first of DefaultFiles found in the current
// directory. With none present it builds the config from the environment
// alone.
func LoadDefault() (*Config, error) {
	for _, name := range DefaultFiles {
		if _, err := os.Stat(name); err == nil {
			return Load(name)
		}
	}
	return parse(nil, "", os.Getenv)
}

// DefaultTemperature is applied before the file is read, so an explicit 0
// in the file is kept.
const DefaultTemperature float32 = 0.5

func parse(data []byte, ext string, getenv func(string) string) (*Config, error) {
	config := Config{
		Summary: SummaryConfig{Temperature: DefaultTemperature},
	}

	if len(data) > 0 {
		switch strings.ToLower(ext) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		default:
			if err := json.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := config.applyEnv(getenv); err != nil {
		return nil, err
	}

	// Set defaults
	config.setDefaults()

	// Validate
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnv overrides file values with any non-empty environment variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&c.STT.APIKey, "OPENAI_API_KEY")
	set(&c.STT.Backend, "STT_BACKEND")
	set(&c.STT.WhisperURL, "WHISPER_URL")
	set(&c.Summary.APIKey, "SUMMARY_API_KEY")
	set(&c.Store.Driver, "STORE_DRIVER")
	set(&c.Store.Database.URL, "DATABASE_URL")
	set(&c.Store.Firestore.ProjectID, "GOOGLE_CLOUD_PROJECT")
	set(&c.Store.Firestore.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Store.Firestore.Collection, "FIRESTORE_COLLECTION")
	set(&c.Archive.Bucket, "ARCHIVE_BUCKET")
	set(&c.Events.NatsURL, "NATS_URL")
	set(&c.Logging.Level, "LOG_LEVEL")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}

	return nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 10
	}

	// STT defaults
	if c.STT.Backend == "" {
		c.STT.Backend = BackendOpenAI
	}
	if c.STT.Model == "" {
		c.STT.Model = "whisper-1"
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.Backend == BackendWhisperCpp && c.STT.WhisperURL == "" {
		c.STT.WhisperURL = "http://localhost:8081"
	}

	// Summary defaults
	if c.Summary.APIKey == "" {
		c.Summary.APIKey = c.STT.APIKey
	}
	if c.Summary.BaseURL == "" {
		c.Summary.BaseURL = c.STT.BaseURL
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "gpt-4o-mini"
	}
	if c.Summary.MaxTokens == 0 {
		c.Summary.MaxTokens = 300
	}

	// Store defaults
	if c.Store.Driver == "" {
		c.Store.Driver = DriverFirestore
	}
	if c.Store.Firestore.Collection == "" {
		c.Store.Firestore.Collection = "journalEntries"
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.Database.Port == 0 {
			c.Store.Database.Port = 5432
		}
		if c.Store.Database.SSLMode == "" {
			c.Store.Database.SSLMode = "disable"
		}
	case DriverSQLite:
		if c.Store.Database.Database == "" {
			c.Store.Database.Database = "voicejournal.db"
		}
	}

	// Events defaults
	if c.Events.Subject == "" {
		c.Events.Subject = "voicejournal.entries"
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.STT.Backend {
	case BackendOpenAI:
		if c.STT.APIKey == "" {
			return fmt.Errorf("stt.api_key (or OPENAI_API_KEY) is required for the openai backend")
		}
	case BackendWhisperCpp:
		if c.STT.WhisperURL == "" {
			return fmt.Errorf("stt.whisper_url is required for the whispercpp backend")
		}
	default:
		return fmt.Errorf("invalid stt backend: %s (must be 'openai' or 'whispercpp')", c.STT.Backend)
	}

	if !c.Summary.Disabled {
		if c.Summary.APIKey == "" {
			return fmt.Errorf("summary.api_key (or SUMMARY_API_KEY) is required unless summary.disabled is set")
		}
		if c.Summary.Temperature < 0 || c.Summary.Temperature > 2 {
			return fmt.Errorf("summary.temperature out of range: %v", c.Summary.Temperature)
		}
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.Database.URL == "" && (c.Store.Database.Host == "" || c.Store.Database.Database == "") {
			return fmt.Errorf("store.database.url (or DATABASE_URL) or host and database are required for postgres")
		}
	case DriverFirestore:
		if c.Store.Firestore.ProjectID == "" {
			return fmt.Errorf("store.firestore.project_id (or GOOGLE_CLOUD_PROJECT) is required for firestore")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", c.Logging.Format)
	}

	return nil
}
