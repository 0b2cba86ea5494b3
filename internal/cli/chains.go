package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/mermaid-agent/internal/chains"
)

var chainsListTags []string

func init() {
	rootCmd.AddCommand(chainsCmd)
	chainsCmd.AddCommand(chainsListCmd)
	chainsCmd.AddCommand(chainsShowCmd)

	chainsListCmd.Flags().StringSliceVar(&chainsListTags, "tag", nil, "filter by tag (repeatable)")
}

var chainsCmd = &cobra.Command{
	Use:     "chains",
	Aliases: []string{"chain"},
	Short:   "Inspect prompt chain definitions",
}

var chainsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List available chains",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadAllChains()
		if err != nil {
			return err
		}
		items = filterChains(items, chainsListTags)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, items)
		}

		if len(items) == 0 {
			fmt.Println("No chains found.")
			return nil
		}

		rows := make([][]string, 0, len(items))
		for _, c := range items {
			rows = append(rows, []string{
				c.Name,
				fmt.Sprintf("%d", len(c.Steps)),
				strings.Join(c.Tags, ","),
				c.Source,
				truncate(c.Description, 60),
			})
		}
		return writeTable(os.Stdout, []string{"NAME", "STEPS", "TAGS", "SOURCE", "DESCRIPTION"}, rows)
	},
}

var chainsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a chain definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := loadAllChains()
		if err != nil {
			return err
		}
		c := findChainByName(items, args[0])
		if c == nil {
			return fmt.Errorf("chain %q not found", args[0])
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, c)
		}

		s := uiStyles()
		fmt.Println(s.Title.Render(c.Name))
		if c.Description != "" {
			fmt.Println(s.Muted.Render(c.Description))
		}
		fmt.Printf("Source: %s\n", c.Source)
		if len(c.Tags) > 0 {
			fmt.Printf("Tags:   %s\n", strings.Join(c.Tags, ", "))
		}

		if len(c.Variables) > 0 {
			fmt.Println()
			rows := make([][]string, 0, len(c.Variables))
			for _, v := range c.Variables {
				rows = append(rows, []string{v.Name, formatYesNo(v.Required), v.Default, truncate(v.Description, 50)})
			}
			if err := writeTable(os.Stdout, []string{"VARIABLE", "REQUIRED", "DEFAULT", "DESCRIPTION"}, rows); err != nil {
				return err
			}
		}

		for i, step := range c.Steps {
			fmt.Println()
			label := fmt.Sprintf("Step %d", i)
			if step.Name != "" {
				label += ": " + step.Name
			}
			fmt.Println(s.Accent.Render(label))
			fmt.Println(s.Block.Render(step.Prompt))
		}
		return nil
	},
}

func loadAllChains() ([]*chains.Chain, error) {
	projectDir, err := os.Getwd()
	if err != nil {
		projectDir = ""
	}
	items, err := chains.LoadChainsFromSearchPaths(projectDir)
	if err != nil {
		return nil, fmt.Errorf("load chains: %w", err)
	}
	return items, nil
}

// filterChains keeps chains carrying any of tags. No tags keeps everything.
func filterChains(items []*chains.Chain, tags []string) []*chains.Chain {
	if len(tags) == 0 {
		return items
	}

	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	filtered := make([]*chains.Chain, 0, len(items))
	for _, c := range items {
		for _, tag := range c.Tags {
			if _, ok := wanted[strings.ToLower(tag)]; ok {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

func findChainByName(items []*chains.Chain, name string) *chains.Chain {
	name = strings.TrimSpace(name)
	for _, c := range items {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}
