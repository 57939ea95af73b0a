package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/codex/internal/assistant"
	"github.com/starford/codex/internal/chunker"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/retrieval"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Ingest    IngestConfig      `yaml:"ingest"`
	Retrieval RetrievalConfig   `yaml:"retrieval"`
	Fetch     FetchConfig       `yaml:"fetch"`
	Assistant AssistantConfig   `yaml:"assistant"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if err := c.Fetch.Validate(); err != nil {
		return err
	}
	if err := c.Assistant.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" env:"CODEX_LOG_LEVEL"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" env:"CODEX_HTTP_PORT"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver   string         `yaml:"driver" env:"CODEX_STORE_DRIVER"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// Validate validates the store configuration. Only the selected driver's
// section is checked.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
	); err != nil {
		return err
	}
	if c.Driver == DriverPostgres {
		return c.Postgres.Validate()
	}
	return c.SQLite.Validate()
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"CODEX_SQLITE_PATH"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PostgresConfig holds Postgres pool configuration.
type PostgresConfig struct {
	DSN         string        `yaml:"dsn" env:"CODEX_POSTGRES_DSN"`
	MaxConns    int           `yaml:"max_conns" env:"CODEX_POSTGRES_MAX_CONNS"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"CODEX_POSTGRES_IDLE_TIMEOUT"`
}

// Validate validates the Postgres configuration.
func (c *PostgresConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxConns, validation.Min(0)),
		validation.Field(&c.IdleTimeout, validation.Min(time.Duration(0))),
	)
}

// IngestConfig holds ingestion settings. WatchDir is synced at startup and,
// when Watch is set, watched for new and changed files.
type IngestConfig struct {
	ChunkSize  int      `yaml:"chunk_size" env:"CODEX_CHUNK_SIZE"`
	MaxBytes   int64    `yaml:"max_bytes" env:"CODEX_MAX_BYTES"`
	Extensions []string `yaml:"extensions" env:"CODEX_EXTENSIONS" envSeparator:","`
	Workers    int      `yaml:"workers" env:"CODEX_INGEST_WORKERS"`
	WatchDir   string   `yaml:"watch_dir" env:"CODEX_WATCH_DIR"`
	Watch      bool     `yaml:"watch" env:"CODEX_WATCH"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Extensions, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.WatchDir, validation.When(c.Watch, validation.Required)),
	)
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	K int `yaml:"k" env:"CODEX_RETRIEVAL_K"`
}

// Validate validates the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.K, validation.Required, validation.Min(1)),
	)
}

// FetchConfig holds remote fetch settings. RatePerSecond 0 disables throttling.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" env:"CODEX_FETCH_TIMEOUT"`
	RatePerSecond float64       `yaml:"rate_per_second" env:"CODEX_FETCH_RATE"`
	Burst         int           `yaml:"burst" env:"CODEX_FETCH_BURST"`
}

// Validate validates the fetch configuration.
func (c *FetchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RatePerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.When(c.RatePerSecond > 0, validation.Required, validation.Min(1))),
	)
}

// AssistantConfig configures the OpenAI-compatible completion backend.
// Leaving both BaseURL and APIKey empty disables the assistant.
type AssistantConfig struct {
	BaseURL     string  `yaml:"base_url" env:"CODEX_ASSISTANT_BASE_URL"`
	APIKey      string  `yaml:"api_key" env:"CODEX_ASSISTANT_API_KEY"`
	Model       string  `yaml:"model" env:"CODEX_ASSISTANT_MODEL"`
	Temperature float32 `yaml:"temperature" env:"CODEX_ASSISTANT_TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"CODEX_ASSISTANT_MAX_TOKENS"`
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Temperature, validation.Min(float32(0)), validation.Max(float32(2))),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	)
}

// Options converts the section to assistant settings.
func (c *AssistantConfig) Options() assistant.Config {
	return assistant.Config{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" env:"CODEX_AUTH_MODE"`
	Token string `yaml:"token" env:"CODEX_AUTH_TOKEN"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{
				Path: "./codex.db",
			},
			Postgres: PostgresConfig{
				MaxConns:    10,
				IdleTimeout: 30 * time.Second,
			},
		},
		Ingest: IngestConfig{
			ChunkSize:  chunker.DefaultSize,
			MaxBytes:   ingest.DefaultMaxBytes,
			Extensions: append([]string(nil), ingest.DefaultExtensions...),
			Workers:    4,
			WatchDir:   "./docs",
		},
		Retrieval: RetrievalConfig{
			K: retrieval.DefaultK,
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
		},
		Assistant: AssistantConfig{
			Temperature: 0.2,
			MaxTokens:   800,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
