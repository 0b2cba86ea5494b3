// Package config loads mermaid-agent configuration from file, environment
// and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MERMAID_AGENT_LLM_MODEL.
const EnvPrefix = "MERMAID_AGENT"

// Config is the top-level configuration.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Output  OutputConfig  `mapstructure:"output"`
	Mermaid MermaidConfig `mapstructure:"mermaid"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	UI      UIConfig      `mapstructure:"ui"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Backend string        `mapstructure:"backend"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Command is the argv of the command backend; the prompt is written to stdin.
	Command []string `mapstructure:"command"`
}

// OutputConfig controls where run artifacts are written.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Delimiter string `mapstructure:"delimiter"`
	// Artifacts disables the results and filled prompt dumps when false.
	Artifacts bool `mapstructure:"artifacts"`
}

// MermaidConfig configures the chart renderer.
type MermaidConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the metrics textfile.
type MetricsConfig struct {
	// Textfile is written in Prometheus text format after each run when set.
	Textfile string `mapstructure:"textfile"`
}

// UIConfig configures human-readable output.
type UIConfig struct {
	// Theme names a palette: default or high-contrast.
	Theme string `mapstructure:"theme"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Backend: "gemini",
			Model:   "gemini-1.5-pro-latest",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 2 * time.Minute,
		},
		Output: OutputConfig{
			Dir:       ".",
			Artifacts: true,
		},
		Mermaid: MermaidConfig{
			BaseURL: "https://mermaid.ink",
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme: "default",
		},
	}
}

// DefaultConfigDir returns ~/.config/mermaid-agent.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "mermaid-agent")
}

// New returns a viper instance with defaults and environment bindings applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY")

	return v
}

// Load reads configuration into v. An explicit path must exist; otherwise
// config.yaml is looked up in the working directory and DefaultConfigDir.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := DefaultConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.Backend) == "" {
		return errors.New("llm.backend is required")
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm.timeout must not be negative")
	}
	if c.Mermaid.Timeout < 0 {
		return errors.New("mermaid.timeout must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("llm.backend", cfg.LLM.Backend)
	v.SetDefault("llm.model", cfg.LLM.Model)
	v.SetDefault("llm.api_key", cfg.LLM.APIKey)
	v.SetDefault("llm.base_url", cfg.LLM.BaseURL)
	v.SetDefault("llm.timeout", cfg.LLM.Timeout)
	v.SetDefault("llm.command", cfg.LLM.Command)
	v.SetDefault("output.dir", cfg.Output.Dir)
	v.SetDefault("output.delimiter", cfg.Output.Delimiter)
	v.SetDefault("output.artifacts", cfg.Output.Artifacts)
	v.SetDefault("mermaid.base_url", cfg.Mermaid.BaseURL)
	v.SetDefault("mermaid.timeout", cfg.Mermaid.Timeout)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)
	v.SetDefault("ui.theme", cfg.UI.Theme)
}
