package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mermaid-agent/internal/mermaid"
)

const (
	defaultMermaidChain  = "mermaid"
	defaultMermaidOutput = "mermaid.png"
)

var (
	merPrompt    string
	merOutput    string
	merInput     string
	merChain     string
	merNoRender  bool
	merArtifacts string
)

func init() {
	rootCmd.AddCommand(merCmd)

	merCmd.Flags().StringVarP(&merPrompt, "prompt", "p", "", "the prompt for generating the mermaid chart")
	merCmd.Flags().StringVarP(&merOutput, "output", "o", defaultMermaidOutput, "output image for the generated chart (.png, .svg, .jpg)")
	merCmd.Flags().StringVarP(&merInput, "input", "i", "", "file with additional content for the chart")
	merCmd.Flags().StringVar(&merChain, "chain", defaultMermaidChain, "chain used to draft and review the chart")
	merCmd.Flags().BoolVar(&merNoRender, "no-render", false, "print the chart without rendering an image")
	merCmd.Flags().StringVar(&merArtifacts, "artifact-prefix", "mermaid_prompt", "file name prefix for the results and filled prompt dumps")
}

var merCmd = &cobra.Command{
	Use:   "mer",
	Short: "Generate a mermaid chart from a prompt",
	Long: `Draft a mermaid chart from a prompt, have the model review it, print the
reviewed chart and render it to an image.

The contents of --input are offered to the model alongside the prompt.`,
	Example: `  mermaid-agent mer -p "flowchart of a CI pipeline" -o ci.png
  mermaid-agent mer -p "sequence diagram of this API" -i api.md -o api.svg`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		prompt, err := resolveMerPrompt()
		if err != nil {
			return err
		}

		vars := map[string]string{"user_prompt": prompt}
		if merInput != "" {
			data, err := os.ReadFile(merInput)
			if err != nil {
				return fmt.Errorf("read input file: %w", err)
			}
			vars["file_content"] = string(data)
		}

		c, err := resolveChain(merChain, "")
		if err != nil {
			return err
		}

		cfg := GetConfig()
		opts, err := defaultRunOptions(cfg, c, vars)
		if err != nil {
			return err
		}
		opts.ArtifactPrefix = merArtifacts

		result, err := executeChain(ctx, opts)
		if err != nil {
			return err
		}

		if !merNoRender {
			client := mermaid.NewClient(cfg.Mermaid.BaseURL, cfg.Mermaid.Timeout)
			step := startProgress(fmt.Sprintf("Rendering %s", merOutput))
			if err := client.RenderToFile(ctx, result.Final, merOutput); err != nil {
				step.Fail(err)
				return err
			}
			step.Done()
			result.Image = merOutput
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, result)
		}

		fmt.Println(result.Final)
		if result.Image != "" {
			fmt.Fprintln(os.Stderr, uiStyles().Success.Render("Chart written to "+result.Image))
		}
		return nil
	},
}

func resolveMerPrompt() (string, error) {
	prompt := strings.TrimSpace(merPrompt)
	if prompt != "" {
		return prompt, nil
	}
	if IsNonInteractive() {
		return "", &PreflightError{
			Message:  "--prompt is required",
			Hint:     "Describe the chart you want",
			NextStep: `mermaid-agent mer -p "flowchart of user signup"`,
		}
	}

	prompt, err := promptLine(os.Stdin, os.Stderr, "Describe the chart")
	if err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	return prompt, nil
}
