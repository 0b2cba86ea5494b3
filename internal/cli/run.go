package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	runVars     []string
	runFile     string
	runInput    string
	runRaw      bool
	runShowAll  bool
	runArtifact string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runVars, "var", nil, "chain variable key=value (repeatable, comma separated)")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "run a chain definition from a YAML file")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "file loaded into the file_content variable")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "print the final output without stripping a markdown fence")
	runCmd.Flags().BoolVar(&runShowAll, "all", false, "print every step output, not just the last")
	runCmd.Flags().StringVar(&runArtifact, "artifact-prefix", "", "file name prefix for the result dumps (default chain name)")
}

var runCmd = &cobra.Command{
	Use:   "run [chain]",
	Short: "Run a prompt chain",
	Long: `Run a prompt chain by name, or from a YAML definition with --file.

Each step's output is available to later steps as {{output[i]}}; negative
indexes count from the end.`,
	Example: `  mermaid-agent run mermaid-outline --var user_prompt="login flow"
  mermaid-agent run -f chains/review.yaml --var topic=caching --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		if name == "" && runFile == "" {
			return errors.New("chain name or --file is required")
		}
		if name != "" && runFile != "" {
			return errors.New("use either a chain name or --file, not both")
		}

		vars, err := parseChainVars(runVars)
		if err != nil {
			return err
		}
		if runInput != "" {
			data, err := os.ReadFile(runInput)
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			vars["file_content"] = string(data)
		}

		c, err := resolveChain(name, runFile)
		if err != nil {
			return err
		}

		opts, err := defaultRunOptions(GetConfig(), c, vars)
		if err != nil {
			return err
		}
		opts.StripFence = !runRaw
		opts.ArtifactPrefix = runArtifact

		result, err := executeChain(ctx, opts)
		if err != nil {
			return err
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, result)
		}

		if runShowAll {
			s := uiStyles()
			for i, output := range result.Outputs {
				fmt.Println(s.Title.Render(fmt.Sprintf("# output[%d] %s", i, c.Steps[i].Name)))
				fmt.Println(output)
				fmt.Println()
			}
			return nil
		}
		fmt.Println(result.Final)
		return nil
	},
}

// parseChainVars parses key=value pairs. Each entry may hold several
// comma-separated pairs.
func parseChainVars(values []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, value := range values {
		for _, pair := range strings.Split(value, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, val, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid variable %q (expected key=value)", pair)
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return nil, fmt.Errorf("invalid variable %q (empty key)", pair)
			}
			vars[key] = val
		}
	}
	return vars, nil
}
