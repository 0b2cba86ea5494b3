package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// GenerateFunc produces the model output for one filled prompt. It may block
// for as long as the backend needs; timeouts are its own concern.
type GenerateFunc func(ctx context.Context, prompt string, vars Context) (string, error)

// Step is one prompt template of a chain.
type Step struct {
	Name   string
	Prompt string
}

// Result holds the outputs of a completed run. Outputs[i] is the result of
// step i and FilledPrompts[i] is the text that was sent for it.
type Result struct {
	RunID         string
	Outputs       []string
	FilledPrompts []string
}

// Last returns the output of the final step.
func (r *Result) Last() string {
	if r == nil || len(r.Outputs) == 0 {
		return ""
	}
	return r.Outputs[len(r.Outputs)-1]
}

// Runner executes prompt chains one step at a time.
//
// Steps never overlap: step i+1 is resolved only after the output of step i
// has been appended, because any later template may reference it.
type Runner struct {
	// Chain labels the run in logs and observer notifications.
	Chain string

	// RunID labels the run. It is copied into the Result.
	RunID string

	// Expander expands conditional fragments before placeholder
	// resolution. Defaults to TemplateExpander.
	Expander Expander

	// Observer receives step notifications. Defaults to NopObserver.
	Observer Observer

	// Logger receives step logs. The zero value is disabled.
	Logger zerolog.Logger
}

// Run executes prompts in order and returns every output and filled prompt.
func (r *Runner) Run(ctx context.Context, vars Context, generate GenerateFunc, prompts []string) (*Result, error) {
	steps := make([]Step, len(prompts))
	for i, prompt := range prompts {
		steps[i] = Step{Prompt: prompt}
	}
	return r.RunSteps(ctx, vars, generate, steps)
}

// RunSteps executes steps in order. Any failure aborts the run and no partial
// result is returned.
func (r *Runner) RunSteps(ctx context.Context, vars Context, generate GenerateFunc, steps []Step) (*Result, error) {
	if generate == nil {
		return nil, ErrNoGenerateFunc
	}

	expander, observer, logger := r.expander(), r.observer(), r.logger()
	vars = vars.Clone()

	outputs := make([]string, 0, len(steps))
	filled := make([]string, 0, len(steps))

	for i, step := range steps {
		info := StepInfo{
			RunID: r.RunID,
			Chain: r.Chain,
			Name:  step.Name,
			Index: i,
			Total: len(steps),
		}

		expanded, err := expander.Expand(step.Prompt, vars)
		if err != nil {
			return nil, r.abort(observer, logger, info, err)
		}

		prompt, err := Resolve(expanded, vars, outputs)
		if err != nil {
			return nil, r.abort(observer, logger, info, err)
		}

		logger.Debug().
			Int("step", i).
			Str("name", step.Name).
			Int("prompt_chars", len(prompt)).
			Msg("running chain step")
		observer.StepStarted(info, prompt)

		started := time.Now()
		// Each call gets its own copy so a backend cannot change what
		// later steps resolve against.
		output, err := generate(ctx, prompt, vars.Clone())
		elapsed := time.Since(started)
		if err != nil {
			return nil, r.abort(observer, logger, info, fmt.Errorf("%w: %w", ErrGenerationFailed, err))
		}

		outputs = append(outputs, output)
		filled = append(filled, prompt)

		logger.Debug().
			Int("step", i).
			Str("name", step.Name).
			Int("output_chars", len(output)).
			Dur("elapsed", elapsed).
			Msg("chain step finished")
		observer.StepFinished(info, output, elapsed)
	}

	return &Result{
		RunID:         r.RunID,
		Outputs:       outputs,
		FilledPrompts: filled,
	}, nil
}

func (r *Runner) abort(observer Observer, logger zerolog.Logger, info StepInfo, err error) error {
	stepErr := &StepError{Index: info.Index, Name: info.Name, Err: err}
	logger.Warn().Err(err).Int("step", info.Index).Str("name", info.Name).Msg("chain run aborted")
	observer.StepFailed(info, stepErr)
	return stepErr
}

func (r *Runner) expander() Expander {
	if r.Expander == nil {
		return TemplateExpander{}
	}
	return r.Expander
}

func (r *Runner) observer() Observer {
	if r.Observer == nil {
		return NopObserver{}
	}
	return r.Observer
}

func (r *Runner) logger() zerolog.Logger {
	return r.Logger.With().Str("chain", r.Chain).Str("run_id", r.RunID).Logger()
}
