package chains

import (
	"fmt"
	"strings"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

// BuildContext builds the run context for a chain from caller variables,
// applying declared defaults and enforcing required variables. Variables the
// chain does not declare are passed through unchanged.
func BuildContext(c *Chain, vars map[string]string) (chain.Context, error) {
	if c == nil {
		return nil, fmt.Errorf("chain is required")
	}

	ctx := make(chain.Context, len(vars)+len(c.Variables))
	for key, value := range vars {
		ctx[key] = value
	}

	for _, variable := range c.Variables {
		value := strings.TrimSpace(vars[variable.Name])
		if value != "" {
			continue
		}
		if variable.Default != "" {
			ctx[variable.Name] = variable.Default
			continue
		}
		if variable.Required {
			return nil, fmt.Errorf("missing required variable %q", variable.Name)
		}
		if _, exists := ctx[variable.Name]; !exists {
			ctx[variable.Name] = ""
		}
	}

	return ctx, nil
}
