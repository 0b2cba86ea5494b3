// Package chains provides loading of prompt chain definitions.
package chains

import (
	"errors"
	"fmt"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

var (
	// ErrChainNameRequired is returned when a chain has no name.
	ErrChainNameRequired = errors.New("chain name is required")
	// ErrChainNoSteps is returned when a chain has no steps.
	ErrChainNoSteps = errors.New("chain steps are required")
	// ErrChainNotFound is returned when a chain is not found.
	ErrChainNotFound = errors.New("chain not found")
)

// ChainValidationError describes a validation error in a chain definition.
type ChainValidationError struct {
	Field   string
	Index   int
	Message string
}

func (e *ChainValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("chain %s[%d]: %s", e.Field, e.Index, e.Message)
	}
	return fmt.Sprintf("chain %s: %s", e.Field, e.Message)
}

// Chain is a named, ordered list of prompt steps.
type Chain struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description,omitempty"`
	Steps       []ChainStep `yaml:"steps" json:"steps"`
	Variables   []ChainVar  `yaml:"variables,omitempty" json:"variables,omitempty"`
	Tags        []string    `yaml:"tags,omitempty" json:"tags,omitempty"`
	Source      string      `yaml:"-" json:"source"` // file path or "builtin"
}

// ChainStep is a single prompt template in a chain.
type ChainStep struct {
	Name   string `yaml:"name,omitempty" json:"name,omitempty"`
	Prompt string `yaml:"prompt" json:"prompt"`
}

// ChainVar describes a context variable used by a chain.
type ChainVar struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Required    bool   `yaml:"required" json:"required"`
}

// Prompts returns the prompt templates in execution order.
func (c *Chain) Prompts() []string {
	prompts := make([]string, len(c.Steps))
	for i, step := range c.Steps {
		prompts[i] = step.Prompt
	}
	return prompts
}

// RunnerSteps converts the chain into runner steps.
func (c *Chain) RunnerSteps() []chain.Step {
	steps := make([]chain.Step, len(c.Steps))
	for i, step := range c.Steps {
		steps[i] = chain.Step{Name: step.Name, Prompt: step.Prompt}
	}
	return steps
}

// Validate checks that the chain has a usable configuration.
func (c *Chain) Validate() error {
	if c.Name == "" {
		return ErrChainNameRequired
	}
	if len(c.Steps) == 0 {
		return ErrChainNoSteps
	}

	stepNames := make(map[string]struct{})
	for i, step := range c.Steps {
		if step.Prompt == "" {
			return &ChainValidationError{Field: "steps", Index: i, Message: "prompt is required"}
		}
		if step.Name == "" {
			continue
		}
		if _, exists := stepNames[step.Name]; exists {
			return &ChainValidationError{Field: "steps", Index: i, Message: fmt.Sprintf("duplicate step name %q", step.Name)}
		}
		stepNames[step.Name] = struct{}{}
	}

	varNames := make(map[string]struct{})
	for i, variable := range c.Variables {
		if variable.Name == "" {
			return &ChainValidationError{Field: "variables", Index: i, Message: "name is required"}
		}
		if _, exists := varNames[variable.Name]; exists {
			return &ChainValidationError{Field: "variables", Index: i, Message: fmt.Sprintf("duplicate variable %q", variable.Name)}
		}
		varNames[variable.Name] = struct{}{}
	}

	return nil
}
