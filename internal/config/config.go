// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/searchchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete searchchat configuration.
type Config struct {
	// API is the chat backend the client streams from
	API APIConfig `toml:"api" json:"api"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`

	// Server configures `searchchat serve`
	Server ServerConfig `toml:"server" json:"server"`

	// Storage configures saved transcripts
	Storage StorageConfig `toml:"storage" json:"storage"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	// URL is the backend base address, e.g. http://localhost:8000
	URL string `toml:"url" json:"url"`
	// ConnectTimeoutSecs is how long a turn waits for its first event
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	// ConnectGraceSecs is the extra window for a stream that errors while connecting
	ConnectGraceSecs int `toml:"connect_grace_secs" json:"connect_grace_secs"`
	// RetrySecs is the reconnect delay until the server sends retry:
	RetrySecs int `toml:"retry_secs" json:"retry_secs"`
	// ProbeTimeoutSecs bounds reachability probes
	ProbeTimeoutSecs int `toml:"probe_timeout_secs" json:"probe_timeout_secs"`
	// Probe enables reachability logging before dial and after errors
	Probe bool `toml:"probe" json:"probe"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Markdown renders assistant replies as markdown
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowSources lists search result URLs under replies
	ShowSources bool `toml:"show_sources" json:"show_sources"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// File is the log destination for the interactive UI (empty = default)
	File string `toml:"file" json:"file"`
}

// ServerConfig contains demo backend configuration.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`
	// RateLimit is requests per second allowed per client IP (0 = unlimited)
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
	// RateBurst is the token bucket size per client IP
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
	// WordDelayMs is the pause between streamed words
	WordDelayMs int `toml:"word_delay_ms" json:"word_delay_ms"`
}

// StorageConfig contains transcript storage configuration.
type StorageConfig struct {
	// Dir holds saved transcripts (empty = ~/.searchchat/transcripts)
	Dir string `toml:"dir" json:"dir"`
	// MaxTranscripts caps the number kept; oldest are removed first
	MaxTranscripts int `toml:"max_transcripts" json:"max_transcripts"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (a APIConfig) ConnectTimeout() time.Duration {
	return time.Duration(a.ConnectTimeoutSecs) * time.Second
}

// ConnectGrace returns the grace window as a duration.
func (a APIConfig) ConnectGrace() time.Duration {
	return time.Duration(a.ConnectGraceSecs) * time.Second
}

// Retry returns the reconnect delay as a duration.
func (a APIConfig) Retry() time.Duration {
	return time.Duration(a.RetrySecs) * time.Second
}

// ProbeTimeout returns the probe timeout as a duration.
func (a APIConfig) ProbeTimeout() time.Duration {
	return time.Duration(a.ProbeTimeoutSecs) * time.Second
}

// WordDelay returns the delay between streamed words.
func (s ServerConfig) WordDelay() time.Duration {
	return time.Duration(s.WordDelayMs) * time.Millisecond
}

// Addr returns host:port for the demo backend.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:                "http://localhost:8000",
			ConnectTimeoutSecs: 30,
			ConnectGraceSecs:   5,
			RetrySecs:          3,
			ProbeTimeoutSecs:   5,
			Probe:              true,
		},

		UI: UIConfig{
			Markdown:    true,
			ShowSources: true,
		},

		Log: LogConfig{
			Level: "info",
		},

		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			RateLimit:   5,
			RateBurst:   10,
			WordDelayMs: 40,
		},

		Storage: StorageConfig{
			MaxTranscripts: 100,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the searchchat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".searchchat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LogFile returns the configured log file, or the default under Dir.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "searchchat.log"), nil
}

// TranscriptDir returns the configured transcript directory, or the default.
func (c *Config) TranscriptDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "transcripts"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from ~/.searchchat/config.toml, falling back to
// defaults when the file does not exist. Environment overrides are applied
// last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// the values already in cfg.
func LoadTOML(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in zero values that have no meaningful zero setting.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.ConnectTimeoutSecs == 0 {
		cfg.API.ConnectTimeoutSecs = defaults.API.ConnectTimeoutSecs
	}
	if cfg.API.ConnectGraceSecs == 0 {
		cfg.API.ConnectGraceSecs = defaults.API.ConnectGraceSecs
	}
	if cfg.API.RetrySecs == 0 {
		cfg.API.RetrySecs = defaults.API.RetrySecs
	}
	if cfg.API.ProbeTimeoutSecs == 0 {
		cfg.API.ProbeTimeoutSecs = defaults.API.ProbeTimeoutSecs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}

	if cfg.Storage.MaxTranscripts == 0 {
		cfg.Storage.MaxTranscripts = defaults.Storage.MaxTranscripts
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# searchchat configuration file\n")
	buf.WriteString("# Generated by searchchat - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate validates the configuration and returns any errors.
// An empty api.url is allowed; the chat reports it when a question is sent.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.API.URL != "" {
		u, err := url.Parse(c.API.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "api.url",
				Message: fmt.Sprintf("invalid URL '%s', must be an absolute http or https URL", c.API.URL),
			})
		}
	}

	positive := []struct {
		field string
		value int
	}{
		{"api.connect_timeout_secs", c.API.ConnectTimeoutSecs},
		{"api.connect_grace_secs", c.API.ConnectGraceSecs},
		{"api.retry_secs", c.API.RetrySecs},
		{"api.probe_timeout_secs", c.API.ProbeTimeoutSecs},
		{"storage.max_transcripts", c.Storage.MaxTranscripts},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("must be positive, got %d", p.value),
			})
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", c.Server.Port),
		})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Server.RateBurst < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_burst", Message: "must not be negative"})
	}
	if c.Server.WordDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "server.word_delay_ms", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - SEARCHCHAT_API_URL: overrides api.url
//   - SEARCHCHAT_LOG_LEVEL: overrides log.level
//   - SEARCHCHAT_LOG_FILE: overrides log.file
//   - SEARCHCHAT_PORT: overrides server.port
func (c *Config) ApplyEnvOverrides() {
	if v, ok := os.LookupEnv("SEARCHCHAT_API_URL"); ok {
		c.API.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("SEARCHCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SEARCHCHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("SEARCHCHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "api.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "api.retry_secs").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field := fieldByTag(v, part)
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds the struct field whose toml tag matches name.
func fieldByTag(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]
		if tag == name {
			return v.Field(i)
		}
	}
	return reflect.Value{}
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns all configuration keys in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + strings.Split(f.Tag.Get("toml"), ",")[0]
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// String returns the config encoded as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
