package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

// commandWaitDelay bounds how long output pipes are drained after the
// process is killed.
const commandWaitDelay = 2 * time.Second

// CommandGenerator runs an external CLI per prompt. The prompt is written to
// stdin and stdout is the reply.
type CommandGenerator struct {
	Command []string
	Timeout time.Duration
	// Env is appended to the inherited environment.
	Env []string
}

// Generate runs the command once.
func (g *CommandGenerator) Generate(ctx context.Context, prompt string, _ chain.Context) (string, error) {
	if g == nil || len(g.Command) == 0 || strings.TrimSpace(g.Command[0]) == "" {
		return "", errors.New("generation command is empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = commandWaitDelay
	if len(g.Env) > 0 {
		cmd.Env = append(cmd.Environ(), g.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("run %s: %w: %s", g.Command[0], err, msg)
		}
		return "", fmt.Errorf("run %s: %w", g.Command[0], err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("%s: %w", g.Command[0], ErrEmptyResponse)
	}
	return out, nil
}
