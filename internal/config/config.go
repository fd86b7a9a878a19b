package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sweetalert/internal/templatefmt"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName       = "sweetalert"
	defaultHTTPListen        = ":8080"
	defaultHealthPath        = "/healthz"
	defaultReadyPath         = "/readyz"
	defaultCookieName        = "sweetalert_session"
	defaultCookiePath        = "/"
	defaultIdleTTLSeconds    = 7200
	defaultReloadDebounceMS  = 250
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultNATSSessionBucket = "sessions"
	defaultRedisURL          = "redis://127.0.0.1:6379/0"
	defaultRedisKeyPrefix    = "sweetalert:session:"

	// ServiceModeSingle keeps sessions in process memory.
	ServiceModeSingle = "single"
	// ServiceModeNATS keeps sessions in a JetStream KV bucket.
	ServiceModeNATS = "nats"
	// ServiceModeRedis keeps sessions in Redis.
	ServiceModeRedis = "redis"
)

// Config holds service runtime settings and alert defaults.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Alert   AlertConfig   `toml:"alert"`
	HTTP    HTTPConfig    `toml:"http"`
	Session SessionConfig `toml:"session"`
	Log     LogConfig     `toml:"log"`
}

// ServiceConfig contains process-level settings.
// Params: name, session backend mode, and reload settings.
// Returns: service behavior defaults.
type ServiceConfig struct {
	Name             string `toml:"name"`
	Mode             string `toml:"mode"`
	ReloadEnabled    bool   `toml:"reload_enabled"`
	ReloadDebounceMS int    `toml:"reload_debounce_ms"`
}

// AlertConfig contains alert builder defaults.
// Params: optional autoclose delay and optional custom script template.
// Returns: process-wide alert settings.
type AlertConfig struct {
	AutocloseMS    *int   `toml:"autoclose_ms"`
	ScriptTemplate string `toml:"script_template"`
}

// HTTPConfig configures the HTTP listener.
// Params: listen address and health check paths.
// Returns: HTTP server behavior.
type HTTPConfig struct {
	Listen     string `toml:"listen"`
	HealthPath string `toml:"health_path"`
	ReadyPath  string `toml:"ready_path"`
}

// SessionConfig configures session cookies and backends.
// Params: cookie attributes, idle TTL, and backend sections.
// Returns: session manager options.
type SessionConfig struct {
	CookieName   string             `toml:"cookie_name"`
	CookiePath   string             `toml:"cookie_path"`
	CookieSecure bool               `toml:"cookie_secure"`
	IdleTTLSec   int                `toml:"idle_ttl_sec"`
	NATS         NATSSessionConfig  `toml:"nats"`
	Redis        RedisSessionConfig `toml:"redis"`
}

// NATSSessionConfig contains JetStream KV settings for the session backend.
// Params: server URLs, bucket name, and bucket creation toggle.
// Returns: NATS session backend options.
type NATSSessionConfig struct {
	URL               []string      `toml:"url"`
	Bucket            string        `toml:"bucket"`
	AllowCreateBucket bool          `toml:"allow_create_bucket"`
	TTL               time.Duration `toml:"-"`
}

// RedisSessionConfig contains Redis settings for the session backend.
// Params: redis URL and key prefix.
// Returns: Redis session backend options.
type RedisSessionConfig struct {
	URL       string        `toml:"url"`
	KeyPrefix string        `toml:"key_prefix"`
	TTL       time.Duration `toml:"-"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// IdleTTL returns session idle lifetime.
// Params: none.
// Returns: TTL duration.
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLSec) * time.Second
}

// DeriveNATSSessionConfig builds NATS backend settings from runtime config.
// Params: full runtime configuration snapshot.
// Returns: NATS settings with TTL bound to session idle lifetime.
func DeriveNATSSessionConfig(cfg Config) NATSSessionConfig {
	out := cfg.Session.NATS
	out.URL = normalizeNATSURLs(out.URL)
	if len(out.URL) == 0 {
		out.URL = []string{defaultNATSURL}
	}
	out.TTL = cfg.Session.IdleTTL()
	return out
}

// DeriveRedisSessionConfig builds Redis backend settings from runtime config.
// Params: full runtime configuration snapshot.
// Returns: Redis settings with TTL bound to session idle lifetime.
func DeriveRedisSessionConfig(cfg Config) RedisSessionConfig {
	out := cfg.Session.Redis
	out.TTL = cfg.Session.IdleTTL()
	return out
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// Path returns the filesystem path watched for reloads.
// Params: none.
// Returns: file or directory path.
func (s ConfigSource) Path() string {
	if s.File != "" {
		return s.File
	}
	return s.Dir
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, _, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeHints carries explicit bool-presence markers used for directory overlays.
// Params: sparse fields decoded from one TOML fragment.
// Returns: merge behavior hints for zero-value bool overrides.
type mergeHints struct {
	Service struct {
		ReloadEnabled *bool `toml:"reload_enabled"`
	} `toml:"service"`
	Session struct {
		CookieSecure *bool `toml:"cookie_secure"`
		NATS         struct {
			AllowCreateBucket *bool `toml:"allow_create_bucket"`
		} `toml:"nats"`
	} `toml:"session"`
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot or fragment.
// Returns: decoded config, explicit-bool hints, or read/decode error.
func loadFile(path string) (Config, mergeHints, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, mergeHints{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(body, &cfg); err != nil {
		return Config{}, mergeHints{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var hints mergeHints
	if err := toml.Unmarshal(body, &hints); err != nil {
		return Config{}, mergeHints{}, fmt.Errorf("decode merge hints %q: %w", path, err)
	}
	return cfg, hints, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	for _, file := range files {
		fragment, hints, err := loadFile(file)
		if err != nil {
			return Config{}, err
		}
		mergeConfig(&merged, fragment, hints)
	}
	return merged, nil
}

// mergeConfig overlays source onto destination field by field.
// Params: destination config, next fragment, and explicit-bool hints.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, src Config, hints mergeHints) {
	overlayString(&dst.Service.Name, src.Service.Name)
	overlayString(&dst.Service.Mode, src.Service.Mode)
	overlayBool(&dst.Service.ReloadEnabled, hints.Service.ReloadEnabled)
	if src.Service.ReloadDebounceMS != 0 {
		dst.Service.ReloadDebounceMS = src.Service.ReloadDebounceMS
	}

	if src.Alert.AutocloseMS != nil {
		value := *src.Alert.AutocloseMS
		dst.Alert.AutocloseMS = &value
	}
	overlayString(&dst.Alert.ScriptTemplate, src.Alert.ScriptTemplate)

	overlayString(&dst.HTTP.Listen, src.HTTP.Listen)
	overlayString(&dst.HTTP.HealthPath, src.HTTP.HealthPath)
	overlayString(&dst.HTTP.ReadyPath, src.HTTP.ReadyPath)

	overlayString(&dst.Session.CookieName, src.Session.CookieName)
	overlayString(&dst.Session.CookiePath, src.Session.CookiePath)
	overlayBool(&dst.Session.CookieSecure, hints.Session.CookieSecure)
	if src.Session.IdleTTLSec != 0 {
		dst.Session.IdleTTLSec = src.Session.IdleTTLSec
	}
	if len(src.Session.NATS.URL) > 0 {
		dst.Session.NATS.URL = append([]string(nil), src.Session.NATS.URL...)
	}
	overlayString(&dst.Session.NATS.Bucket, src.Session.NATS.Bucket)
	overlayBool(&dst.Session.NATS.AllowCreateBucket, hints.Session.NATS.AllowCreateBucket)
	overlayString(&dst.Session.Redis.URL, src.Session.Redis.URL)
	overlayString(&dst.Session.Redis.KeyPrefix, src.Session.Redis.KeyPrefix)

	if src.Log.Console != (LogSinkConfig{}) {
		dst.Log.Console = src.Log.Console
	}
	if src.Log.File != (LogSinkConfig{}) {
		dst.Log.File = src.Log.File
	}
}

func overlayString(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}

func overlayBool(dst *bool, explicit *bool) {
	if explicit != nil {
		*dst = *explicit
	}
}

// applyDefaults fills omitted settings.
// Params: config pointer.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	cfg.Service.Mode = NormalizeServiceMode(cfg.Service.Mode)
	if cfg.Service.ReloadDebounceMS <= 0 {
		cfg.Service.ReloadDebounceMS = defaultReloadDebounceMS
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HTTP.HealthPath) == "" {
		cfg.HTTP.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.HTTP.ReadyPath) == "" {
		cfg.HTTP.ReadyPath = defaultReadyPath
	}

	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		cfg.Session.CookieName = defaultCookieName
	}
	if strings.TrimSpace(cfg.Session.CookiePath) == "" {
		cfg.Session.CookiePath = defaultCookiePath
	}
	if cfg.Session.IdleTTLSec == 0 {
		cfg.Session.IdleTTLSec = defaultIdleTTLSeconds
	}
	if strings.TrimSpace(cfg.Session.NATS.Bucket) == "" {
		cfg.Session.NATS.Bucket = defaultNATSSessionBucket
	}
	if strings.TrimSpace(cfg.Session.Redis.URL) == "" {
		cfg.Session.Redis.URL = defaultRedisURL
	}
	if cfg.Session.Redis.KeyPrefix == "" {
		cfg.Session.Redis.KeyPrefix = defaultRedisKeyPrefix
	}

	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}
	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
}

// validateConfig checks a defaulted snapshot.
// Params: config snapshot.
// Returns: first validation error.
func validateConfig(cfg Config) error {
	if !IsSupportedServiceMode(cfg.Service.Mode) {
		return fmt.Errorf("service.mode has unsupported value %q", cfg.Service.Mode)
	}
	if cfg.Session.IdleTTLSec < 0 {
		return errors.New("session.idle_ttl_sec must be >=0")
	}
	if strings.ContainsAny(cfg.Session.CookieName, " ;,=\t") {
		return fmt.Errorf("session.cookie_name has invalid value %q", cfg.Session.CookieName)
	}
	if !strings.HasPrefix(cfg.HTTP.HealthPath, "/") {
		return errors.New("http.health_path must start with /")
	}
	if !strings.HasPrefix(cfg.HTTP.ReadyPath, "/") {
		return errors.New("http.ready_path must start with /")
	}
	if body := strings.TrimSpace(cfg.Alert.ScriptTemplate); body != "" {
		if _, err := templatefmt.ParseScriptTemplate("alert.script_template", body); err != nil {
			return fmt.Errorf("alert.script_template is invalid: %w", err)
		}
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	return nil
}

// NormalizeServiceMode canonicalizes service mode and applies default.
// Params: raw mode value from config.
// Returns: normalized mode (`single` by default).
func NormalizeServiceMode(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return ServiceModeSingle
	}
	return normalized
}

// IsSupportedServiceMode reports whether mode value is supported.
// Params: mode value.
// Returns: true for known modes.
func IsSupportedServiceMode(mode string) bool {
	switch NormalizeServiceMode(mode) {
	case ServiceModeSingle, ServiceModeNATS, ServiceModeRedis:
		return true
	default:
		return false
	}
}

// normalizeNATSURLs trims and drops empty server URLs.
// Params: raw URL list.
// Returns: cleaned URL list.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}
