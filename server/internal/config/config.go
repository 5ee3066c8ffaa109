package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bizpulse/bizpulse/pkg/analysis"
	"github.com/bizpulse/bizpulse/pkg/logging"
)

// AlertsConfig holds alert delivery settings.
type AlertsConfig struct {
	// Cooldown suppresses re-fires of the same alert for the same source.
	// Defaults to 1 hour.
	Cooldown time.Duration `yaml:"cooldown"`

	// Rules are extra alert conditions evaluated on every received snapshot,
	// alongside the built-in loss and CAC spike alerts.
	Rules []AlertRule `yaml:"rules"`

	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one custom alert condition.
type AlertRule struct {
	// Name is the alert identifier, used with the source ID as deduplication key.
	Name string `yaml:"name"`

	// Condition is a boolean expression over the snapshot metrics, e.g.
	// "profit < -1000" or "cac_change_pct > 50 && profit_status == 'loss'".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info. Defaults to warning.
	Severity string `yaml:"severity"`
}

// Webhook types.
const (
	WebhookSlack = "slack"
	WebhookTeams = "teams"
	WebhookHTTP  = "http"
)

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultReportTTL         = 24 * time.Hour
	DefaultBroadcastInterval = 5 * time.Second
	DefaultAlertCooldown     = time.Hour
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `analyst:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates analysts and API clients.
	Auth AuthConfig `yaml:"auth"`

	// Reports controls in-memory snapshot retention.
	Reports ReportsConfig `yaml:"reports"`

	// BroadcastInterval is how often WebSocket clients receive the snapshot.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	Alerts AlertsConfig `yaml:"alerts"`

	Log logging.Config `yaml:"log"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// ReportsConfig controls in-memory snapshot retention.
type ReportsConfig struct {
	// TTL is how long a source's latest snapshot stays live after its last update.
	// Default: 24h.
	TTL time.Duration `yaml:"ttl"`
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
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
		return fmt.Errorf("server config: load env file %q: %w", path, err)
	}
	return nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			Reports:           ReportsConfig{TTL: DefaultReportTTL},
			BroadcastInterval: DefaultBroadcastInterval,
			Alerts:            AlertsConfig{Cooldown: DefaultAlertCooldown},
		},
	}
}

// reservedRuleNames are the built-in advisory rules.
var reservedRuleNames = map[string]bool{
	analysis.RuleLoss:     true,
	analysis.RuleCACSpike: true,
	analysis.RuleGrowth:   true,
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey":
		if s.Auth.KeyEnv == "" {
			return fmt.Errorf("server.auth.key_env is required in apikey mode")
		}
	case "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Reports.TTL < 0 {
		return fmt.Errorf("server.reports.ttl must not be negative")
	}
	if s.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if s.Alerts.Cooldown < 0 {
		return fmt.Errorf("server.alerts.cooldown must not be negative")
	}
	names := make(map[string]bool, len(s.Alerts.Rules))
	for i, r := range s.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
		if names[r.Name] || reservedRuleNames[r.Name] {
			return fmt.Errorf("server.alerts.rules[%d]: duplicate or reserved name %q", i, r.Name)
		}
		names[r.Name] = true
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d]: unknown severity %q", i, r.Severity)
		}
	}
	for i, wh := range s.Alerts.Webhooks {
		switch wh.Type {
		case WebhookSlack, WebhookTeams, WebhookHTTP:
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q: want slack|teams|http", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("server.alerts.webhooks[%d]: url_env is required", i)
		}
	}
	if err := s.Log.Validate(); err != nil {
		return fmt.Errorf("server.log: %w", err)
	}
	return nil
}
