package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
	"github.com/opencode-ai/mermaid-agent/internal/chains"
	"github.com/opencode-ai/mermaid-agent/internal/config"
	"github.com/opencode-ai/mermaid-agent/internal/llm"
	"github.com/opencode-ai/mermaid-agent/internal/logging"
	"github.com/opencode-ai/mermaid-agent/internal/metrics"
	"github.com/opencode-ai/mermaid-agent/internal/sink"
)

// newGenerator builds the configured backend. Tests replace it.
var newGenerator = llm.New

// chainRunOptions describes one chain execution.
type chainRunOptions struct {
	Chain     *chains.Chain
	Vars      map[string]string
	Generator llm.Generator
	// Sink receives the results and filled prompt artifacts.
	Sink sink.Sink
	// ArtifactPrefix names the artifacts; defaults to the chain name.
	ArtifactPrefix string
	// StripFence removes a markdown fence around the final output.
	StripFence bool
	Progress   io.Writer
	// MetricsTextfile is written after the run when set.
	MetricsTextfile string
	Logger          zerolog.Logger
}

// ChainRunResult is the machine-readable outcome of a run.
type ChainRunResult struct {
	RunID         string   `json:"run_id"`
	Chain         string   `json:"chain"`
	Outputs       []string `json:"outputs"`
	FilledPrompts []string `json:"filled_prompts"`
	Final         string   `json:"final"`
	Artifacts     []string `json:"artifacts,omitempty"`
	Image         string   `json:"image,omitempty"`
	DurationMS    int64    `json:"duration_ms"`
}

func executeChain(ctx context.Context, opts chainRunOptions) (*ChainRunResult, error) {
	if opts.Chain == nil {
		return nil, fmt.Errorf("chain is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generation backend is required")
	}

	vars, err := chains.BuildContext(opts.Chain, opts.Vars)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := opts.Logger.With().Str("run_id", runID).Logger()

	observers := chain.MultiObserver{}
	if opts.Progress != nil {
		observers = append(observers, newProgressObserver(opts.Progress))
	}
	var recorder *metrics.Recorder
	if opts.MetricsTextfile != "" {
		recorder = metrics.NewRecorder()
		observers = append(observers, recorder)
	}

	runner := &chain.Runner{
		Chain:    opts.Chain.Name,
		RunID:    runID,
		Observer: observers,
		Logger:   opts.Logger,
	}

	logger.Info().
		Str("chain", opts.Chain.Name).
		Int("steps", len(opts.Chain.Steps)).
		Msg("chain run started")

	started := time.Now()
	result, runErr := runner.RunSteps(ctx, vars, llm.AsGenerateFunc(opts.Generator), opts.Chain.RunnerSteps())
	elapsed := time.Since(started)

	if recorder != nil {
		if err := recorder.WriteTextfile(opts.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Str("path", opts.MetricsTextfile).Msg("failed to write metrics")
		}
	}
	if runErr != nil {
		logger.Error().Err(runErr).Dur("elapsed", elapsed).Msg("chain run failed")
		return nil, runErr
	}

	out := &ChainRunResult{
		RunID:         runID,
		Chain:         opts.Chain.Name,
		Outputs:       result.Outputs,
		FilledPrompts: result.FilledPrompts,
		Final:         result.Last(),
		DurationMS:    elapsed.Milliseconds(),
	}
	if opts.StripFence {
		out.Final = llm.StripCodeFence(out.Final)
	}

	if opts.Sink != nil {
		prefix := opts.ArtifactPrefix
		if prefix == "" {
			prefix = opts.Chain.Name
		}
		artifacts := []struct {
			name    string
			entries []string
		}{
			{prefix + "_results", result.Outputs},
			{prefix + "_filled_prompts", result.FilledPrompts},
		}
		for _, artifact := range artifacts {
			if err := opts.Sink.Write(ctx, artifact.name, artifact.entries); err != nil {
				return nil, fmt.Errorf("write %s: %w", artifact.name, err)
			}
			if fileSink, ok := opts.Sink.(*sink.FileSink); ok {
				out.Artifacts = append(out.Artifacts, fileSink.Path(artifact.name))
			}
		}
	}

	logger.Info().
		Str("chain", opts.Chain.Name).
		Dur("elapsed", elapsed).
		Int("final_chars", len(out.Final)).
		Msg("chain run finished")
	return out, nil
}

// defaultRunOptions fills the parts of chainRunOptions that come from config.
func defaultRunOptions(cfg *config.Config, c *chains.Chain, vars map[string]string) (chainRunOptions, error) {
	generator, err := newGenerator(cfg.LLM)
	if err != nil {
		return chainRunOptions{}, err
	}

	opts := chainRunOptions{
		Chain:           c,
		Vars:            vars,
		Generator:       generator,
		Sink:            sink.NoopSink{},
		StripFence:      true,
		MetricsTextfile: cfg.Metrics.Textfile,
		Logger:          logging.Component("chain"),
	}
	if cfg.Output.Artifacts {
		opts.Sink = sink.NewFileSink(cfg.Output.Dir, cfg.Output.Delimiter)
	}
	if progressEnabled() {
		opts.Progress = os.Stderr
	}
	return opts, nil
}

// resolveChain finds a chain by name in the search paths, or loads it from
// a YAML file when path is set.
func resolveChain(name, path string) (*chains.Chain, error) {
	if path != "" {
		return chains.LoadChain(path)
	}

	projectDir, err := os.Getwd()
	if err != nil {
		projectDir = ""
	}
	c, err := chains.FindChain(projectDir, name)
	if err != nil {
		return nil, &PreflightError{
			Message:  fmt.Sprintf("chain %q: %v", name, err),
			Hint:     "Chains are loaded from .mermaid-agent/chains, ~/.config/mermaid-agent/chains and the builtins",
			NextStep: "mermaid-agent chains list",
		}
	}
	return c, nil
}
