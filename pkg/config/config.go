// Package config loads trustlane settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, environment
// variables, command-line flags (applied by the caller).
//
// Example file:
//
//	[density]
//	min_zones = 5
//	min_nodes = 25
//	min_flows = 20
//	expand = true
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[server]
//	addr = ":8080"
//	read_timeout = "10s"
//
//	[llm]
//	model = "gpt-4o-mini"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/normalize"
)

const appName = "trustlane"

// Environment variables that override file settings.
const (
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvModel    = "OPENAI_MODEL"
	EnvBaseURL  = "OPENAI_API_BASE"
	EnvRedisURL = "TRUSTLANE_REDIS_URL"
	EnvMongoURI = "TRUSTLANE_MONGO_URI"
	EnvAddr     = "TRUSTLANE_ADDR"
)

// Defaults.
const (
	DefaultAddr         = ":8080"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 60 * time.Second
	DefaultMaxBodyBytes = 1 << 20
	DefaultModel        = "gpt-4o-mini"
)

// Config is the complete settings tree.
type Config struct {
	Density Density `toml:"density"`
	Cache   Cache   `toml:"cache"`
	Server  Server  `toml:"server"`
	LLM     LLM     `toml:"llm"`
}

// Density holds normalization thresholds.
type Density struct {
	MinZones     int  `toml:"min_zones"`
	MinNodes     int  `toml:"min_nodes"`
	MinFlows     int  `toml:"min_flows"`
	MinNodesHard int  `toml:"min_nodes_hard"`
	Expand       bool `toml:"expand"`
	Strict       bool `toml:"strict"`
}

// Cache selects and configures the cache backend.
type Cache struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MemoryEntries int    `toml:"memory_entries"`
	RedisURL      string `toml:"redis_url"`
	MongoURI      string `toml:"mongo_uri"`
	Prefix        string `toml:"prefix"`
}

// Server configures the HTTP API.
type Server struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	MaxBodyBytes int64         `toml:"max_body_bytes"`
	Metrics      bool          `toml:"metrics"`
}

// LLM configures model-backed extraction.
type LLM struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	// Enabled forces the model on or off; unset means "when a key exists".
	Enabled *bool `toml:"enabled"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Density: Density{
			MinZones:     normalize.DefaultMinZones,
			MinNodes:     normalize.DefaultMinNodes,
			MinFlows:     normalize.DefaultMinFlows,
			MinNodesHard: normalize.DefaultMinNodesHard,
			Expand:       true,
		},
		Cache: Cache{
			Backend:       cache.BackendFile,
			MemoryEntries: cache.DefaultMemoryEntries,
		},
		Server: Server{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			MaxBodyBytes: DefaultMaxBodyBytes,
			Metrics:      true,
		},
		LLM: LLM{Model: DefaultModel},
	}
}

// Load reads path over the defaults. Keys the file sets that no setting
// uses are returned as warnings, not errors.
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file not found: %s", path)
		}
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadDefault reads DefaultPath if it exists and returns the defaults
// otherwise.
func LoadDefault() (*Config, []string, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), nil, nil
	}
	cfg, warnings, err := Load(path)
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return Default(), nil, nil
	}
	return cfg, warnings, err
}

// Parse decodes TOML data over the defaults.
func Parse(data []byte) (*Config, []string, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	var warnings []string
	for _, key := range md.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key %q", key.String()))
	}
	if err := cfg.Validate(); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// Validate checks value ranges and the cache backend name.
func (c *Config) Validate() error {
	d := c.Density
	for name, v := range map[string]int{
		"density.min_zones":      d.MinZones,
		"density.min_nodes":      d.MinNodes,
		"density.min_flows":      d.MinFlows,
		"density.min_nodes_hard": d.MinNodesHard,
	} {
		if v < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be greater than or equal to 0", name)
		}
	}
	if !validBackend(c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be one of: %s",
			strings.Join(cache.Backends, ", "))
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_body_bytes must be greater than or equal to 0")
	}
	return nil
}

func validBackend(name string) bool {
	for _, b := range cache.Backends {
		if b == name {
			return true
		}
	}
	return false
}

// ApplyEnv overrides settings from the environment. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIKey); strings.TrimSpace(v) != "" {
		c.LLM.APIKey = strings.TrimSpace(v)
	}
	if v := getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.Cache.RedisURL = v
		if c.Cache.Backend == cache.BackendFile {
			c.Cache.Backend = cache.BackendRedis
		}
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Cache.MongoURI = v
	}
	if v := getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// UseLLM reports whether model-backed extraction should be attempted.
func (l LLM) UseLLM() bool {
	if l.Enabled != nil {
		return *l.Enabled
	}
	return l.APIKey != ""
}

// CacheOptions converts the cache section to cache.OpenOptions.
func (c *Config) CacheOptions() cache.OpenOptions {
	return cache.OpenOptions{
		Backend:       c.Cache.Backend,
		Dir:           c.Cache.Dir,
		MemoryEntries: c.Cache.MemoryEntries,
		RedisURL:      c.Cache.RedisURL,
		MongoURI:      c.Cache.MongoURI,
		Prefix:        c.Cache.Prefix,
	}
}

// =============================================================================
// Paths
// =============================================================================

// DefaultPath returns $XDG_CONFIG_HOME/trustlane/config.toml, falling back to
// ~/.config/trustlane/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// CacheDir returns $XDG_CACHE_HOME/trustlane, falling back to
// ~/.cache/trustlane.
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
