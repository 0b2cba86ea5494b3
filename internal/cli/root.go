// Package cli implements the mermaid-agent command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opencode-ai/mermaid-agent/internal/config"
	"github.com/opencode-ai/mermaid-agent/internal/logging"
	"github.com/opencode-ai/mermaid-agent/internal/styles"
)

var (
	cfgFile        string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	jsonlOutput    bool
	noColor        bool
	noProgress     bool
	nonInteractive bool
	backendFlag    string
	modelFlag      string

	appConfig *config.Config
	appViper  = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "mermaid-agent",
	Short: "Generate mermaid charts with prompt chains",
	Long: `mermaid-agent runs multi-step prompt chains against an LLM backend.

The mer command drafts a mermaid chart from a prompt, has the model review
it, and renders the reviewed chart to an image.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput && jsonlOutput {
			return fmt.Errorf("--json and --jsonl are mutually exclusive")
		}
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ~/.config/mermaid-agent/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console or json")
	flags.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "emit JSON Lines output")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt for input")
	flags.StringVar(&backendFlag, "backend", "", "generation backend: gemini, command, echo")
	flags.StringVar(&modelFlag, "model", "", "model name for the backend")

	mustBindFlag("logging.level", "log-level")
	mustBindFlag("logging.format", "log-format")
	mustBindFlag("llm.backend", "backend")
	mustBindFlag("llm.model", "model")
}

func mustBindFlag(key, flag string) {
	if err := appViper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(appViper, cfgFile)
	if err != nil {
		return err
	}
	appConfig = cfg

	if err := logging.Init(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  os.Stderr,
		NoColor: noColor || !hasTTY(),
	}); err != nil {
		return err
	}

	logger := logging.Component("cli")
	logger.Debug().
		Str("command", cmd.CommandPath()).
		Str("config", cfg.File).
		Str("backend", cfg.LLM.Backend).
		Msg("configuration loaded")
	return nil
}

// GetConfig returns the loaded configuration, or defaults before load.
func GetConfig() *config.Config {
	if appConfig == nil {
		defaults := config.DefaultConfig()
		return &defaults
	}
	return appConfig
}

// GetViper exposes the viper instance flags are bound to.
func GetViper() *viper.Viper {
	return appViper
}

// IsJSONOutput reports whether --json was requested.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was requested.
func IsJSONLOutput() bool {
	return jsonlOutput
}

func uiStyles() styles.Styles {
	if noColor || !hasTTY() {
		return styles.PlainStyles()
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return styles.PlainStyles()
	}
	return styles.BuildStyles(styles.ThemeByName(GetConfig().UI.Theme))
}

// PreflightError is an error with a hint for how to fix it.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}
	if e.NextStep != "" {
		b.WriteString("\n  try:  ")
		b.WriteString(e.NextStep)
	}
	return b.String()
}

func printError(err error) {
	if IsJSONOutput() || IsJSONLOutput() {
		_ = WriteOutput(os.Stderr, map[string]string{"error": err.Error()})
		return
	}
	fmt.Fprintln(os.Stderr, uiStyles().Error.Render("error: "+err.Error()))
}
