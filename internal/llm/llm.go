// Package llm provides the generation backends that answer chain prompts.
package llm

import (
	"context"
	"errors"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

// ErrEmptyResponse is returned when a backend produced no text.
var ErrEmptyResponse = errors.New("backend returned no text")

// Generator answers one filled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, vars chain.Context) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, vars chain.Context) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, vars chain.Context) (string, error) {
	return f(ctx, prompt, vars)
}

// AsGenerateFunc returns g as the function a chain.Runner expects.
func AsGenerateFunc(g Generator) chain.GenerateFunc {
	if g == nil {
		return nil
	}
	return g.Generate
}

// EchoGenerator returns the prompt it was given. Used for dry runs.
type EchoGenerator struct {
	// Prefix is prepended to every reply.
	Prefix string
}

// Generate returns the prompt unchanged.
func (g EchoGenerator) Generate(_ context.Context, prompt string, _ chain.Context) (string, error) {
	return g.Prefix + prompt, nil
}
