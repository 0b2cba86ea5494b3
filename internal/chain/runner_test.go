package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type scriptedGenerator struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	failAt  int
}

func newScriptedGenerator(replies ...string) *scriptedGenerator {
	return &scriptedGenerator{replies: replies, failAt: -1}
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, vars Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	step := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if step == g.failAt {
		return "", errors.New("backend unavailable")
	}
	if step < len(g.replies) {
		return g.replies[step], nil
	}
	return fmt.Sprintf("reply %d", step), nil
}

type recordingObserver struct {
	started  []int
	finished []int
	failed   []error
}

func (o *recordingObserver) StepStarted(step StepInfo, prompt string) {
	o.started = append(o.started, step.Index)
}

func (o *recordingObserver) StepFinished(step StepInfo, output string, elapsed time.Duration) {
	o.finished = append(o.finished, step.Index)
}

func (o *recordingObserver) StepFailed(step StepInfo, err error) {
	o.failed = append(o.failed, err)
}

func TestRunnerChartAndReview(t *testing.T) {
	gen := newScriptedGenerator("graph LR; A --> B", "graph LR; A --> B (reviewed)")
	runner := &Runner{Chain: "mermaid", RunID: "run-1"}

	result, err := runner.Run(context.Background(),
		Context{"user_prompt": "draw A to B"},
		gen.Generate,
		[]string{"Chart request: {{user_prompt}}", "Review: {{output[-1]}}"},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"graph LR; A --> B", "graph LR; A --> B (reviewed)"}, result.Outputs)
	require.Equal(t, []string{"Chart request: draw A to B", "Review: graph LR; A --> B"}, result.FilledPrompts)
	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, "graph LR; A --> B (reviewed)", result.Last())
	require.Equal(t, result.FilledPrompts, gen.prompts)
}

func TestRunnerReferenceBeforeAnyOutput(t *testing.T) {
	gen := newScriptedGenerator()
	observer := &recordingObserver{}
	runner := &Runner{Observer: observer}

	result, err := runner.Run(context.Background(), Context{}, gen.Generate, []string{"Review: {{output[-1]}}"})
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrUnresolvedReference)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, 0, stepErr.Index)

	require.Empty(t, gen.prompts, "generate must not be called")
	require.Empty(t, observer.started)
	require.Len(t, observer.failed, 1)
}

func TestRunnerOutputsMatchGeneratePerStep(t *testing.T) {
	prompts := []string{"one {{x}}", "two", "three {{y}}", "four"}
	vars := Context{"x": "X"}
	gen := func(ctx context.Context, prompt string, vars Context) (string, error) {
		return strings.ToUpper(prompt), nil
	}

	result, err := (&Runner{}).Run(context.Background(), vars, gen, prompts)
	require.NoError(t, err)
	require.Len(t, result.Outputs, len(prompts))
	require.Len(t, result.FilledPrompts, len(prompts))
	require.Equal(t, []string{"ONE X", "TWO", "THREE {{Y}}", "FOUR"}, result.Outputs)
}

func TestRunnerLaterStepsSeeEarlierOutputs(t *testing.T) {
	gen := newScriptedGenerator("outline", "chart", "final")

	result, err := (&Runner{}).Run(context.Background(), nil, gen.Generate, []string{
		"start",
		"chart from {{output[0]}}",
		"review {{output[-1]}} against {{output[0]}}",
	})
	require.NoError(t, err)
	require.Equal(t, "chart from outline", result.FilledPrompts[1])
	require.Equal(t, "review chart against outline", result.FilledPrompts[2])
}

func TestRunnerGenerationFailureAborts(t *testing.T) {
	gen := newScriptedGenerator("first")
	gen.failAt = 1
	observer := &recordingObserver{}
	runner := &Runner{Observer: observer}

	result, err := runner.Run(context.Background(), nil, gen.Generate, []string{"a", "b {{output[-1]}}", "c"})
	require.Nil(t, result)
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.Contains(t, err.Error(), "backend unavailable")

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, 1, stepErr.Index)

	require.Len(t, gen.prompts, 2, "no step after the failure may run")
	require.Equal(t, []int{0, 1}, observer.started)
	require.Equal(t, []int{0}, observer.finished)
	require.Len(t, observer.failed, 1)
}

func TestRunnerRequiresGenerateFunc(t *testing.T) {
	_, err := (&Runner{}).Run(context.Background(), nil, nil, []string{"a"})
	require.ErrorIs(t, err, ErrNoGenerateFunc)
}

func TestRunnerEmptyChain(t *testing.T) {
	gen := newScriptedGenerator()
	result, err := (&Runner{}).Run(context.Background(), nil, gen.Generate, nil)
	require.NoError(t, err)
	require.Empty(t, result.Outputs)
	require.Empty(t, result.FilledPrompts)
	require.Equal(t, "", result.Last())
}

func TestRunnerExpandsConditionalsBeforeResolving(t *testing.T) {
	tmpl := "Request: {{user_prompt}}\n[~ if .file_content ~]<file>{{file_content}}</file>\n[~ end ~]done"
	echo := func(ctx context.Context, prompt string, vars Context) (string, error) {
		return prompt, nil
	}

	result, err := (&Runner{}).Run(context.Background(), Context{"user_prompt": "pie", "file_content": "data"}, echo, []string{tmpl})
	require.NoError(t, err)
	require.Equal(t, "Request: pie\n<file>data</file>\ndone", result.Outputs[0])

	result, err = (&Runner{}).Run(context.Background(), Context{"user_prompt": "pie", "file_content": ""}, echo, []string{tmpl})
	require.NoError(t, err)
	require.Equal(t, "Request: pie\ndone", result.Outputs[0])
}

func TestRunnerExpansionFailureAborts(t *testing.T) {
	gen := newScriptedGenerator()
	_, err := (&Runner{}).Run(context.Background(), nil, gen.Generate, []string{"[~ if ~]"})
	require.ErrorIs(t, err, ErrTemplateExpand)
	require.Empty(t, gen.prompts)
}

func TestRunnerCustomExpander(t *testing.T) {
	upper := ExpanderFunc(func(tmpl string, vars Context) (string, error) {
		return strings.ToUpper(tmpl), nil
	})
	echo := func(ctx context.Context, prompt string, vars Context) (string, error) {
		return prompt, nil
	}

	result, err := (&Runner{Expander: upper}).Run(context.Background(), Context{"NAME": "x"}, echo, []string{"hi {{name}}"})
	require.NoError(t, err)
	require.Equal(t, "HI x", result.Outputs[0])
}

func TestRunnerDoesNotMutateCallerContext(t *testing.T) {
	vars := Context{"k": "v"}
	mutate := func(ctx context.Context, prompt string, got Context) (string, error) {
		got["k"] = "changed"
		return "", nil
	}

	_, err := (&Runner{}).Run(context.Background(), vars, mutate, []string{"a"})
	require.NoError(t, err)
	require.Equal(t, "v", vars["k"])
}

func TestRunnerContextFixedAcrossSteps(t *testing.T) {
	mutate := func(ctx context.Context, prompt string, got Context) (string, error) {
		got["k"] = "changed"
		delete(got, "other")
		return "", nil
	}

	result, err := (&Runner{}).Run(context.Background(), Context{"k": "orig", "other": "x"}, mutate, []string{"{{k}} {{other}}", "{{k}} {{other}}"})
	require.NoError(t, err)
	require.Equal(t, []string{"orig x", "orig x"}, result.FilledPrompts)
}

func TestRunnerLogsSteps(t *testing.T) {
	var buf bytes.Buffer
	runner := &Runner{Chain: "mermaid", RunID: "run-7", Logger: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	_, err := runner.Run(context.Background(), nil, newScriptedGenerator("out").Generate, []string{"hello"})
	require.NoError(t, err)

	logs := buf.String()
	require.Contains(t, logs, `"chain":"mermaid"`)
	require.Contains(t, logs, `"run_id":"run-7"`)
	require.Contains(t, logs, "chain step finished")
}

func TestRunnerZeroLoggerIsSilent(t *testing.T) {
	gen := newScriptedGenerator()
	gen.failAt = 0

	_, err := (&Runner{}).Run(context.Background(), nil, gen.Generate, []string{"x"})
	require.ErrorIs(t, err, ErrGenerationFailed)
}

func TestRunStepsCarriesStepNames(t *testing.T) {
	gen := newScriptedGenerator()
	gen.failAt = 0

	_, err := (&Runner{}).RunSteps(context.Background(), nil, gen.Generate, []Step{{Name: "create", Prompt: "x"}})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "create", stepErr.Name)
	require.Contains(t, err.Error(), "chain step 0 (create)")
}
