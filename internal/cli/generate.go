package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trustlane/pkg/drawio"
	"github.com/matzehuels/trustlane/pkg/errors"
	"github.com/matzehuels/trustlane/pkg/extract"
)

// generateBase names the outputs of a generate run fed from stdin.
const generateBase = "security_architecture"

type generateOpts struct {
	output  string
	formats string
	profile string
	detail  string
	llm     bool
	density densityFlags
}

// generateCommand creates the generate command: description text in,
// rendered document out.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate [description.txt|-]",
		Short: "Generate a diagram from a plain-text architecture description",
		Long: `Generate turns a plain-text description into a graph and renders it.

With an API key configured (OPENAI_API_KEY or [llm] api_key) the description is
sent to the model, and invalid answers are repaired up to twice. Without one,
or when the model keeps failing, a keyword-based generator is used instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): drawio (default), svg, dot, layout (comma-separated)")
	cmd.Flags().StringVar(&opts.profile, "profile", extract.DefaultProfile, "architecture profile named in the prompt")
	cmd.Flags().StringVar(&opts.detail, "detail", errors.DetailStandard, "detail level: lite, standard, threat-model")
	cmd.Flags().BoolVar(&opts.llm, "llm", false, "force the model on or off (default: on when an API key is set)")
	opts.density.register(cmd)

	return cmd
}

func (c *CLI) runGenerate(cmd *cobra.Command, input string, opts *generateOpts) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, input)
	if err != nil {
		return err
	}

	popts := opts.density.options(cmd, cfg, c.Logger)
	popts.Formats = parseFormats(opts.formats)
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	ext, err := c.newExtractor(cfg, runner.Cache)
	if err != nil {
		return err
	}

	req := extract.Request{
		Text:        string(text),
		Profile:     opts.profile,
		DetailLevel: opts.detail,
		UseLLM:      cfg.LLM.Enabled,
	}
	if cmd.Flags().Changed("llm") {
		req.UseLLM = &opts.llm
	}

	prog := newProgress(c.Logger)
	var spin *Spinner
	if ext.HasModel() && (req.UseLLM == nil || *req.UseLLM) {
		spin = newSpinnerWithContext(ctx, "Asking the model")
		spin.Start()
	}
	resp, err := ext.Extract(ctx, req)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}
	prog.done("Extracted graph via " + string(resp.Source))
	for _, e := range resp.Errors {
		printWarning("%s", e)
	}

	raw, err := resp.Graph.Raw()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode extracted graph")
	}
	res, err := runner.Execute(ctx, raw, popts)
	if err != nil {
		return reportError(err)
	}
	logStats(c.Logger, res)

	name := input
	if input == "-" {
		name = generateBase
	}
	paths, err := writeArtifacts(res, popts.Formats, opts.output, name)
	if err != nil {
		return err
	}

	printSuccess("Generated %s", res.Graph.TitleOr(drawio.DefaultDiagramName))
	printKeyValue("source", string(resp.Source))
	if resp.Attempts > 0 {
		printKeyValue("attempts", strconv.Itoa(resp.Attempts))
	}
	printStats(res.Stats.Zones, res.Stats.Nodes, res.Stats.Flows, resp.Cached)
	for _, p := range paths {
		printFile(p)
	}
	return nil
}
