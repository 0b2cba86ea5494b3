package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mermaid-agent/internal/llm"
	"github.com/opencode-ai/mermaid-agent/internal/mermaid"
)

var (
	renderInput  string
	renderOutput string
	renderURL    bool
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderInput, "input", "i", "", "mermaid source file (- for stdin)")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", defaultMermaidOutput, "output image (.png, .svg, .jpg)")
	renderCmd.Flags().BoolVar(&renderURL, "url", false, "print the render URL instead of downloading")
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a mermaid chart to an image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if renderInput == "" {
			return errors.New("--input is required")
		}

		var (
			data []byte
			err  error
		)
		if renderInput == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(renderInput)
		}
		if err != nil {
			return fmt.Errorf("read chart: %w", err)
		}
		chart := llm.StripCodeFence(string(data))

		cfg := GetConfig()
		client := mermaid.NewClient(cfg.Mermaid.BaseURL, cfg.Mermaid.Timeout)

		if renderURL {
			url := client.URL(chart, mermaid.FormatForPath(renderOutput))
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(os.Stdout, map[string]string{"url": url})
			}
			fmt.Println(url)
			return nil
		}

		step := startProgress(fmt.Sprintf("Rendering %s", renderOutput))
		if err := client.RenderToFile(ctx, chart, renderOutput); err != nil {
			step.Fail(err)
			return err
		}
		step.Done()

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]string{"image": renderOutput})
		}
		fmt.Fprintln(os.Stderr, uiStyles().Success.Render("Chart written to "+renderOutput))
		return nil
	},
}
