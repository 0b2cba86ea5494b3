package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

type progressStep struct {
	out     io.Writer
	label   string
	started time.Time
	enabled bool
}

func startProgress(label string) *progressStep {
	if !progressEnabled() {
		return nil
	}
	return startProgressTo(os.Stderr, label)
}

func startProgressTo(out io.Writer, label string) *progressStep {
	fmt.Fprintf(out, "%s... ", label)
	return &progressStep{
		out:     out,
		label:   label,
		started: time.Now(),
		enabled: true,
	}
}

func (p *progressStep) Done() {
	if p == nil || !p.enabled {
		return
	}
	fmt.Fprintf(p.out, "done (%s)\n", formatDuration(time.Since(p.started)))
}

func (p *progressStep) Fail(err error) {
	if p == nil || !p.enabled {
		return
	}
	if err != nil {
		fmt.Fprintf(p.out, "failed: %v\n", err)
		return
	}
	fmt.Fprintln(p.out, "failed")
}

func progressEnabled() bool {
	if IsJSONOutput() || IsJSONLOutput() {
		return false
	}
	if noProgress {
		return false
	}
	if _, ok := os.LookupEnv("MERMAID_AGENT_NO_PROGRESS"); ok {
		return false
	}
	if _, ok := os.LookupEnv("NO_PROGRESS"); ok {
		return false
	}
	return true
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	if d < time.Second {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

// progressObserver prints one progress line per chain step.
type progressObserver struct {
	out     io.Writer
	current *progressStep
}

func newProgressObserver(out io.Writer) chain.Observer {
	if !progressEnabled() {
		return chain.NopObserver{}
	}
	return &progressObserver{out: out}
}

func (p *progressObserver) StepStarted(step chain.StepInfo, _ string) {
	p.current = startProgressTo(p.out, stepLabel(step))
}

func (p *progressObserver) StepFinished(chain.StepInfo, string, time.Duration) {
	p.current.Done()
	p.current = nil
}

func (p *progressObserver) StepFailed(step chain.StepInfo, err error) {
	if p.current == nil {
		// Failed before the backend was called.
		p.current = startProgressTo(p.out, stepLabel(step))
	}
	p.current.Fail(err)
	p.current = nil
}

func stepLabel(step chain.StepInfo) string {
	label := fmt.Sprintf("Step %d/%d", step.Index+1, step.Total)
	if step.Name != "" {
		label += " " + step.Name
	}
	return label
}
