// Package config loads the campus configuration from ~/.campus/config.yaml,
// an optional .env file and CAMPUS_* environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/campus/internal/errors"
	"github.com/felixgeelhaar/campus/internal/role"
	"github.com/felixgeelhaar/campus/internal/session"
)

// Environment variables.
const (
	EnvHome       = "CAMPUS_HOME"
	EnvAPIURL     = "CAMPUS_API_URL"
	EnvAPITimeout = "CAMPUS_API_TIMEOUT"
	EnvLogLevel   = "CAMPUS_LOG_LEVEL"
	EnvStore      = "CAMPUS_STORE"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
)

const (
	dirName  = ".campus"
	fileName = "config.yaml"
)

// Config represents the campus configuration file.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Refresh RefreshConfig `yaml:"refresh"`
	Token   TokenConfig   `yaml:"token"`
	Routes  RoutesConfig  `yaml:"routes,omitempty"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`          // "debug", "info", "warn", "error"
	Format string `yaml:"format"`         // "text", "json"
	File   string `yaml:"file,omitempty"` // Default <home>/logs/campus.log
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" or "memory"
}

type RefreshConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Lookahead time.Duration `yaml:"lookahead"`
}

type TokenConfig struct {
	ExpiryMargin time.Duration `yaml:"expiry_margin"`
}

// RoutesConfig customizes navigation. Landing is keyed by role slug
// (teacher, learningadvisor, manager); Access by route path.
type RoutesConfig struct {
	Landing map[string]string   `yaml:"landing,omitempty"`
	Access  map[string][]string `yaml:"access,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	landing := make(map[string]string, len(role.All))
	for _, r := range role.All {
		landing[r.Slug()] = session.HomePath
	}
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Backend: StoreFile,
		},
		Refresh: RefreshConfig{
			Interval:  5 * time.Minute,
			Lookahead: 60 * time.Second,
		},
		Routes: RoutesConfig{
			Landing: landing,
		},
	}
}

// Home returns the campus home directory: $CAMPUS_HOME or ~/.campus.
func Home() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(userHome, dirName), nil
}

// Path returns the path of the configuration file.
func Path() (string, error) {
	home, err := Home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// LogFile returns the configured log file, defaulting to <home>/logs/campus.log.
func (c *Config) LogFile(home string) string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(home, "logs", "campus.log")
}

// LoadDotEnv loads .env files into the process environment. Variables
// already set are kept; missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); stderrors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("failed to load %s", p), err)
		}
	}
	return nil
}

// Load reads the configuration from the default path, creating it with
// defaults on first use, and applies environment overrides.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads the configuration at path, writing defaults when the file
// does not exist yet. Missing sections are filled from Default.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); stderrors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read config: %s", path), err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path with owner-only permissions.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write config: %s", path), err)
	}
	return nil
}

// ApplyEnv overrides fields from CAMPUS_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvAPITimeout); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid %s", EnvAPITimeout), err)
		}
		c.API.Timeout = d
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvStore); ok && v != "" {
		c.Store.Backend = v
	}
	return c.Validate()
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreFile, StoreMemory:
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown store backend %q", c.Store.Backend)).
			WithSuggestion("Use 'file' or 'memory'")
	}
	if c.API.Timeout < 0 || c.Refresh.Interval < 0 || c.Refresh.Lookahead < 0 || c.Token.ExpiryMargin < 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "durations must not be negative")
	}
	for slug := range c.Routes.Landing {
		if !role.Parse(slug).Valid() {
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("routes.landing: unknown role %q", slug))
		}
	}
	return nil
}

// Landing converts routes.landing into the session landing map.
func (c *Config) Landing() session.Landing {
	l := session.DefaultLanding()
	for slug, path := range c.Routes.Landing {
		if r := role.Parse(slug); r.Valid() && path != "" {
			l[r] = path
		}
	}
	return l
}

// Keys lists every key Get and Set accept, excluding per-role and per-route
// map entries.
func Keys() []string {
	return []string{
		"api.base_url",
		"api.timeout",
		"logging.level",
		"logging.format",
		"logging.file",
		"store.backend",
		"refresh.interval",
		"refresh.lookahead",
		"token.expiry_margin",
	}
}

// Get retrieves a value using dot notation.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api.base_url":
		return c.API.BaseURL, nil
	case "api.timeout":
		return c.API.Timeout.String(), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	case "store.backend":
		return c.Store.Backend, nil
	case "refresh.interval":
		return c.Refresh.Interval.String(), nil
	case "refresh.lookahead":
		return c.Refresh.Lookahead.String(), nil
	case "token.expiry_margin":
		return c.Token.ExpiryMargin.String(), nil
	}

	if slug, ok := strings.CutPrefix(key, "routes.landing."); ok {
		return c.Landing().For(role.Parse(slug)), nil
	}
	if path, ok := strings.CutPrefix(key, "routes.access."); ok {
		return strings.Join(c.Routes.Access[path], ","), nil
	}
	return "", unknownKey(key)
}

// Set assigns a value using dot notation. The configuration is validated
// afterwards; an invalid value leaves c unchanged.
func (c *Config) Set(key, value string) error {
	next := c.clone()
	if err := next.set(key, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = *next
	return nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "api.base_url":
		c.API.BaseURL = value
	case "api.timeout":
		c.API.Timeout, err = parseDuration(value)
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	case "store.backend":
		c.Store.Backend = value
	case "refresh.interval":
		c.Refresh.Interval, err = parseDuration(value)
	case "refresh.lookahead":
		c.Refresh.Lookahead, err = parseDuration(value)
	case "token.expiry_margin":
		c.Token.ExpiryMargin, err = parseDuration(value)
	default:
		return c.setMapEntry(key, value)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s", key), err)
	}
	return nil
}

func (c *Config) setMapEntry(key, value string) error {
	if slug, ok := strings.CutPrefix(key, "routes.landing."); ok {
		r := role.Parse(slug)
		if !r.Valid() {
			return unknownKey(key)
		}
		if c.Routes.Landing == nil {
			c.Routes.Landing = map[string]string{}
		}
		c.Routes.Landing[r.Slug()] = value
		return nil
	}
	if path, ok := strings.CutPrefix(key, "routes.access."); ok && path != "" {
		if c.Routes.Access == nil {
			c.Routes.Access = map[string][]string{}
		}
		var roles []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				roles = append(roles, name)
			}
		}
		c.Routes.Access[path] = roles
		return nil
	}
	return unknownKey(key)
}

func (c *Config) clone() *Config {
	next := *c
	next.Routes.Landing = make(map[string]string, len(c.Routes.Landing))
	for k, v := range c.Routes.Landing {
		next.Routes.Landing[k] = v
	}
	if c.Routes.Access != nil {
		next.Routes.Access = make(map[string][]string, len(c.Routes.Access))
		for k, v := range c.Routes.Access {
			next.Routes.Access[k] = append([]string(nil), v...)
		}
	}
	return &next
}

func unknownKey(key string) error {
	keys := Keys()
	sort.Strings(keys)
	return errors.New(errors.ErrCodeConfigKey, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("Known keys: " + strings.Join(keys, ", ") + ", routes.landing.<role>, routes.access.<path>")
}

// parseDuration accepts Go durations ("5s") and bare seconds ("5").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var secs int
	if _, err := fmt.Sscanf(s, "%d", &secs); err == nil && fmt.Sprint(secs) == s {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
