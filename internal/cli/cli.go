// Package cli implements the trustlane command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/trustlane/pkg/buildinfo"
	"github.com/matzehuels/trustlane/pkg/cache"
	"github.com/matzehuels/trustlane/pkg/config"
	"github.com/matzehuels/trustlane/pkg/extract"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "trustlane"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	noCache    bool
	getenv     func(string) string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		getenv: os.Getenv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Trustlane turns security architecture graphs into draw.io diagrams",
		Long:         `Trustlane validates a zone/node/flow description of a system, tops it up to a readable density, lays it out on a grid and writes an editable draw.io document.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/trustlane/config.toml)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable the result cache")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.normalizeCommand())
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.schemaCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config & Factories
// =============================================================================

// loadConfig reads --config (or the default file when present) and applies
// the environment on top.
func (c *CLI) loadConfig() (*config.Config, error) {
	var (
		cfg      *config.Config
		warnings []string
		err      error
	)
	if c.configPath != "" {
		cfg, warnings, err = config.Load(c.configPath)
	} else {
		cfg, warnings, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		c.Logger.Warn(w)
	}
	cfg.ApplyEnv(c.getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openCache opens the configured backend. The file backend defaults to the
// XDG cache directory; a file cache that cannot be created degrades to none.
func (c *CLI) openCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if c.noCache {
		return cache.NewNullCache(), nil
	}
	opts := cfg.CacheOptions()
	if opts.Backend == cache.BackendFile && opts.Dir == "" {
		dir, err := cacheDir()
		if err != nil {
			c.Logger.Debug("no cache directory", "err", err)
			return cache.NewNullCache(), nil
		}
		opts.Dir = dir
	}
	cc, err := cache.Open(ctx, opts)
	if err != nil && opts.Backend == cache.BackendFile {
		c.Logger.Warn("file cache unavailable", "err", err)
		return cache.NewNullCache(), nil
	}
	return cc, err
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config) (*pipeline.Runner, error) {
	cc, err := c.openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

// newExtractor builds an extractor sharing the runner's cache. The model is
// attached only when an API key is configured.
func (c *CLI) newExtractor(cfg *config.Config, cc cache.Cache) (*extract.Extractor, error) {
	opts := []extract.Option{
		extract.WithLogger(c.Logger),
		extract.WithCache(cc, nil),
	}
	if cfg.LLM.APIKey != "" {
		m, err := extract.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, extract.WithModel(m, cfg.LLM.Model))
	}
	return extract.New(opts...), nil
}

// cacheDir returns the cache directory using XDG standard (~/.cache/trustlane/).
func cacheDir() (string, error) {
	return config.CacheDir()
}

// =============================================================================
// Options Helpers
// =============================================================================

// densityFlags are the normalization flags shared by render, validate,
// normalize and generate. Unset flags keep the config values.
type densityFlags struct {
	strict       bool
	noExpand     bool
	minZones     int
	minNodes     int
	minFlows     int
	minNodesHard int
}

func (d *densityFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&d.strict, "strict", false, "reject unknown fields")
	f.BoolVar(&d.noExpand, "no-expand", false, "do not add placeholder zones, nodes and flows")
	f.IntVar(&d.minZones, "min-zones", 0, "minimum zone count before expansion (default from config)")
	f.IntVar(&d.minNodes, "min-nodes", 0, "minimum node count before expansion (default from config)")
	f.IntVar(&d.minFlows, "min-flows", 0, "minimum flow count before expansion (default from config)")
	f.IntVar(&d.minNodesHard, "min-nodes-hard", 0, "minimum nodes per zone (default from config)")
}

// options merges cfg and any flags the user set into pipeline options.
func (d *densityFlags) options(cmd *cobra.Command, cfg *config.Config, logger *log.Logger) pipeline.Options {
	opts := pipeline.Options{
		Strict:       cfg.Density.Strict,
		NoExpand:     !cfg.Density.Expand,
		MinZones:     cfg.Density.MinZones,
		MinNodes:     cfg.Density.MinNodes,
		MinFlows:     cfg.Density.MinFlows,
		MinNodesHard: cfg.Density.MinNodesHard,
		Logger:       logger,
	}
	f := cmd.Flags()
	if f.Changed("strict") {
		opts.Strict = d.strict
	}
	if f.Changed("no-expand") {
		opts.NoExpand = d.noExpand
	}
	if f.Changed("min-zones") {
		opts.MinZones = d.minZones
	}
	if f.Changed("min-nodes") {
		opts.MinNodes = d.minNodes
	}
	if f.Changed("min-flows") {
		opts.MinFlows = d.minFlows
	}
	if f.Changed("min-nodes-hard") {
		opts.MinNodesHard = d.minNodesHard
	}
	return opts
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.DefaultFormat}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
