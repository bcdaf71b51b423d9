package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoAdapters           = errors.New("no adapter enabled: enable telegram and/or http")
	ErrMissingTelegramToken = errors.New("telegram is enabled but TELEGRAM_BOT_TOKEN is not set")
)

// Config is the root configuration for reelbot. Values come from defaults,
// then the optional config file, then environment variables.
type Config struct {
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	RapidAPI RapidAPIConfig `json:"rapidapi" yaml:"rapidapi"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Audit    AuditConfig    `json:"audit" yaml:"audit"`
}

type TelegramConfig struct {
	Enabled            bool           `env:"ENABLE_TELEGRAM"       json:"enabled" yaml:"enabled"`
	Token              string         `env:"TELEGRAM_BOT_TOKEN"    json:"token" yaml:"token"`
	AllowFrom          FlexStringList `env:"TELEGRAM_ALLOW_FROM"   json:"allowFrom" yaml:"allowFrom"`
	PollTimeoutSeconds int            `env:"TELEGRAM_POLL_TIMEOUT" json:"pollTimeoutSeconds" yaml:"pollTimeoutSeconds"`
}

// HTTPConfig configures the JSON test endpoint.
type HTTPConfig struct {
	Enabled bool   `env:"ENABLE_HTTP" json:"enabled" yaml:"enabled"`
	Host    string `env:"HTTP_HOST"   json:"host" yaml:"host"`
	Port    int    `env:"HTTP_PORT"   json:"port" yaml:"port"`
}

// Addr returns host:port for net.Listen.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

type RapidAPIConfig struct {
	Key            string `env:"RAPIDAPI_KEY"             json:"key" yaml:"key"`
	Host           string `env:"RAPIDAPI_HOST"            json:"host" yaml:"host"`
	Path           string `env:"RAPIDAPI_PATH"            json:"path" yaml:"path"`
	TimeoutSeconds int    `env:"RAPIDAPI_TIMEOUT_SECONDS" json:"timeoutSeconds" yaml:"timeoutSeconds"` // 0 = no client timeout
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  json:"level" yaml:"level"`
	Format string `env:"LOG_FORMAT" json:"format" yaml:"format"` // text | json
}

type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// AuditConfig enables the SQLite outcome log used by `reelbot stats`.
type AuditConfig struct {
	Enabled bool   `env:"AUDIT_ENABLED" json:"enabled" yaml:"enabled"`
	DBPath  string `env:"AUDIT_DB_PATH" json:"dbPath" yaml:"dbPath"`
}

// FlexStringList is a []string that accepts JSON arrays mixing strings and
// numbers (Telegram user IDs are often written as numbers) and, from the
// environment, a comma separated list.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

func (f *FlexStringList) UnmarshalText(text []byte) error {
	var result []string
	for _, part := range strings.Split(string(text), ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.reelbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reelbot"
	}
	return filepath.Join(home, ".reelbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads and validates the configuration.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Read builds the configuration from defaults, the optional file at path and
// the environment, without validating it. A missing file is not an error:
// the bot is usually configured from the environment alone.
func Read(path string) (*Config, error) {
	cfg, err := readFile(path, true)
	if err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot parse environment: %w", err)
	}
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	return cfg, nil
}

// ReadFile returns defaults overlaid with the file at path, as written: no
// ${VAR} expansion and no environment overlay. `config set` edits this view
// so that secrets coming from the environment are never written to disk.
func ReadFile(path string) (*Config, error) {
	return readFile(path, false)
}

func readFile(path string, expand bool) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	path = ExpandPath(path)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}
	if expand {
		data = []byte(ExpandEnvVars(string(data)))
	}
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := len(groups) >= 3 && groups[2] != ""
		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as JSON, or YAML when path ends in .yaml/.yml.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	// Secrets may live in the file.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config can start the enabled adapters.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Telegram.Enabled && !cfg.HTTP.Enabled {
		errs = append(errs, ErrNoAdapters)
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, ErrMissingTelegramToken)
	}
	if cfg.Telegram.PollTimeoutSeconds < 0 {
		errs = append(errs, errors.New("telegram.pollTimeoutSeconds must be >= 0"))
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, errors.New("http.port must be between 0 and 65535"))
	}
	if cfg.RapidAPI.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("rapidapi.timeoutSeconds must be >= 0"))
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q must be one of: debug, info, warn, error", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be one of: text, json", cfg.Logging.Format))
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, errors.New("audit.dbPath is required when audit is enabled"))
	}

	return errors.Join(errs...)
}

// Warnings lists non-fatal problems worth logging at startup.
func Warnings(cfg *Config) []string {
	var warns []string
	if strings.TrimSpace(cfg.RapidAPI.Key) == "" {
		warns = append(warns, "RAPIDAPI_KEY is not set: every link will be answered with \"RapidAPI key is not configured.\"")
	}
	if cfg.HTTP.Enabled && cfg.HTTP.Host != "127.0.0.1" && cfg.HTTP.Host != "localhost" {
		warns = append(warns, fmt.Sprintf("http test endpoint listens on %s without authentication", cfg.HTTP.Addr()))
	}
	return warns
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
