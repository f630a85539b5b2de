package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/dsl"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

// stdinName is the base name used for outputs when the input is stdin.
const stdinName = "diagram"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file (single format) or base path (multiple)
	formats  string // comma-separated: drawio, svg, dot, layout
	detailed bool   // node type and tags in previews
	refresh  bool   // bypass cached results
	density  densityFlags
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [graph.json|-]",
		Short: "Render a graph to a draw.io document",
		Long: `Render validates and normalizes a graph JSON file, lays it out and writes
the draw.io document. Additional formats (svg, dot, layout) are written next to
it when requested with --format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format), base path (multiple) or - for stdout")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): drawio (default), svg, dot, layout (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show node types and tags in svg/dot previews")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")
	opts.density.register(cmd)

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts *renderOpts) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	data, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	popts := opts.density.options(cmd, cfg, c.Logger)
	popts.Formats = parseFormats(opts.formats)
	popts.Detailed = opts.detailed
	popts.Refresh = opts.refresh
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	c.Logger.Infof("Rendering %s", displayName(input))
	res, err := runner.ExecuteJSON(ctx, data, popts)
	if err != nil {
		return reportError(err)
	}
	logStats(c.Logger, res)

	if opts.output == "-" {
		if len(popts.Formats) != 1 {
			return errors.New(errors.ErrCodeInvalidInput, "--output - needs exactly one format")
		}
		_, err := cmd.OutOrStdout().Write(res.Artifacts[popts.Formats[0]])
		return err
	}

	paths, err := writeArtifacts(res, popts.Formats, opts.output, input)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		printWarning("%s", w)
	}
	printSuccess("Rendered %s", res.Graph.TitleOr(drawio.DefaultDiagramName))
	printStats(res.Stats.Zones, res.Stats.Nodes, res.Stats.Flows, res.CacheInfo.RenderHit)
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	var density densityFlags

	cmd := &cobra.Command{
		Use:   "validate [graph.json|-]",
		Short: "Check a graph and report every problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			opts := density.options(cmd, cfg, c.Logger)

			raw, err := dsl.ParseRaw(data)
			if err != nil {
				return reportError(err)
			}
			g, err := pipeline.Validate(raw, opts)
			if err != nil {
				return reportError(err)
			}
			res, err := pipeline.Normalize(g, opts)
			if err != nil {
				return reportError(err)
			}

			printSuccess("%s is valid", displayName(args[0]))
			printStats(len(res.Graph.Zones), len(res.Graph.Nodes), len(res.Graph.Flows), false)
			if res.Expanded {
				printInfo("Placeholder entities would be added to reach the minimum density")
			}
			for _, id := range sortedKeys(res.ZoneRenames) {
				if canon := res.ZoneRenames[id]; canon != id {
					printKeyValue(id, canon)
				}
			}
			for _, w := range res.Warnings {
				printWarning("%s", w.Message)
			}
			return nil
		},
	}
	density.register(cmd)
	return cmd
}

// normalizeCommand creates the normalize command.
func (c *CLI) normalizeCommand() *cobra.Command {
	var (
		output  string
		density densityFlags
	)

	cmd := &cobra.Command{
		Use:   "normalize [graph.json|-]",
		Short: "Write the normalized graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			opts := density.options(cmd, cfg, c.Logger)

			raw, err := dsl.ParseRaw(data)
			if err != nil {
				return reportError(err)
			}
			g, err := pipeline.Validate(raw, opts)
			if err != nil {
				return reportError(err)
			}
			res, err := pipeline.Normalize(g, opts)
			if err != nil {
				return reportError(err)
			}

			out, err := json.MarshalIndent(res.Graph, "", "  ")
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "encode graph")
			}
			out = append(out, '\n')
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := writeFile(output, out); err != nil {
				return err
			}
			printSuccess("Normalized %s", displayName(args[0]))
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	density.register(cmd)
	return cmd
}

// schemaCommand creates the schema command.
func (c *CLI) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the graph format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := dsl.SchemaJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "file not found: %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func displayName(input string) string {
	if input == "-" {
		return "stdin"
	}
	return input
}

// reportError prints each field-level problem of err before returning a
// short summary for the exit message.
func reportError(err error) error {
	details := errors.Details(err)
	if len(details) == 0 {
		return err
	}
	for _, d := range details {
		printError("%s", d)
	}
	return errors.New(errors.GetCode(err), "%s: %d problem(s)", errors.UserMessage(err), len(details))
}

// basePath derives the base output path. With no output it strips the
// extension from input; an output carrying a known format extension loses it.
func basePath(output, input string) string {
	if output == "" {
		if input == "-" {
			return stdinName
		}
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	for _, f := range pipeline.Formats {
		if ext := pipeline.Extension(f); strings.HasSuffix(output, ext) {
			return strings.TrimSuffix(output, ext)
		}
	}
	return output
}

// outputPaths maps each format to its file. A single format with an explicit
// output is written exactly there.
func outputPaths(formats []string, output, input string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + pipeline.Extension(f)
	}
	return paths
}

// writeArtifacts writes every rendered format and returns the paths in
// format order.
func writeArtifacts(res *pipeline.Result, formats []string, output, input string) ([]string, error) {
	paths := outputPaths(formats, output, input)
	written := make([]string, 0, len(formats))
	for _, f := range formats {
		if err := writeFile(paths[f], res.Artifacts[f]); err != nil {
			return written, err
		}
		written = append(written, paths[f])
	}
	return written, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
