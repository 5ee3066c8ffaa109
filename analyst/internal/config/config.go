package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/logging"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval   = time.Minute
	DefaultBufferSize = 100
)

// Source types.
const (
	SourceFile       = "file"
	SourceHTTP       = "http"
	SourcePrometheus = "prometheus"
	SourceSQL        = "sql"
)

// Config holds the analyst configuration parsed from the `analyst:` section
// of config.yaml. The `server:` key in the same file is ignored.
type Config struct {
	Analyst AnalystConfig `yaml:"analyst"`
}

// AnalystConfig holds all analyst-side settings.
type AnalystConfig struct {
	// ServerEndpoint is the base URL of bizpulse-server (http://host:port).
	// Empty disables shipping; results are only rendered locally.
	ServerEndpoint string `yaml:"server_endpoint"`

	// Interval controls how often every source is collected in watch mode.
	Interval time.Duration `yaml:"interval"`

	// BufferSize is the maximum number of snapshots held while the server
	// is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// Output is an optional file that receives the latest results as JSON.
	Output string `yaml:"output"`

	// ServerAuth configures how the analyst authenticates to bizpulse-server.
	ServerAuth AuthConfig `yaml:"server_auth"`

	Log logging.Config `yaml:"log"`

	// Sources is the list of places business records are loaded from.
	Sources []Source `yaml:"sources"`
}

// Source describes one place a business record is loaded from.
type Source struct {
	// ID is a unique, human-readable identifier for this source.
	ID string `yaml:"id"`

	// Type is one of: file | http | prometheus | sql.
	Type string `yaml:"type"`

	// Path is the record file for type file (.json, .yaml or .yml).
	Path string `yaml:"path"`

	// Endpoint is the URL fetched for types http and prometheus.
	Endpoint string `yaml:"endpoint"`

	// Auth and TLS apply to http and prometheus sources.
	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`

	// Metrics maps record fields to Prometheus metric family names
	// (prometheus sources only), e.g. revenue: shop_revenue_total.
	Metrics map[string]string `yaml:"metrics"`

	// Driver is the database/sql driver for sql sources: mysql | pgx | sqlite.
	Driver string `yaml:"driver"`

	// DSNEnv names the environment variable holding the sql connection string.
	DSNEnv string `yaml:"dsn_env"`

	// Query must return exactly one row whose column names are record fields.
	Query string `yaml:"query"`

	// CarryForward fills absent previous-period fields from the last
	// successful observation of this source.
	CarryForward bool `yaml:"carry_forward"`
}

// DSN returns the sql connection string resolved from the environment.
func (s Source) DSN() string {
	if s.DSNEnv == "" {
		return ""
	}
	return os.Getenv(s.DSNEnv)
}

// AuthConfig specifies how requests are authenticated.
type AuthConfig struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the API key (apikey mode).
	// Defaults to "x-api-key".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable holding a bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username and PasswordEnv are used in basic mode.
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured header name, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config content. See Load.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load env file %q: %w", path, err)
	}
	return nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Analyst: AnalystConfig{
			Interval:   DefaultInterval,
			BufferSize: DefaultBufferSize,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Analyst
	if a.Interval <= 0 {
		return fmt.Errorf("analyst.interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("analyst.buffer_size must be positive")
	}
	if a.ServerEndpoint != "" {
		u, err := url.Parse(a.ServerEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("analyst.server_endpoint %q must be an http(s) URL", a.ServerEndpoint)
		}
	}
	if err := validateAuth(a.ServerAuth.Mode); err != nil {
		return fmt.Errorf("analyst.server_auth: %w", err)
	}
	if err := a.Log.Validate(); err != nil {
		return fmt.Errorf("analyst.log: %w", err)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if err := validateSource(src); err != nil {
			return fmt.Errorf("sources[%d] %q: %w", i, src.ID, err)
		}
	}
	return nil
}

func validateSource(src Source) error {
	switch src.Type {
	case SourceFile:
		if src.Path == "" {
			return fmt.Errorf("path is required")
		}
	case SourceHTTP:
		if src.Endpoint == "" {
			return fmt.Errorf("endpoint is required")
		}
	case SourcePrometheus:
		if src.Endpoint == "" {
			return fmt.Errorf("endpoint is required")
		}
		if len(src.Metrics) == 0 {
			return fmt.Errorf("metrics mapping is required")
		}
		for field := range src.Metrics {
			if !knownField(field) {
				return fmt.Errorf("metrics: unknown record field %q", field)
			}
		}
	case SourceSQL:
		switch src.Driver {
		case "mysql", "pgx", "sqlite":
		default:
			return fmt.Errorf("unknown sql driver %q: want mysql|pgx|sqlite", src.Driver)
		}
		if src.DSNEnv == "" {
			return fmt.Errorf("dsn_env is required")
		}
		if src.Query == "" {
			return fmt.Errorf("query is required")
		}
	default:
		return fmt.Errorf("unknown type %q", src.Type)
	}
	if err := validateAuth(src.Auth.Mode); err != nil {
		return err
	}
	return nil
}

func validateAuth(mode string) error {
	switch mode {
	case "apikey", "bearer", "basic", "none", "":
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q", mode)
	}
}

func knownField(name string) bool {
	for _, f := range analysis.FieldNames {
		if f == name {
			return true
		}
	}
	return false
}
