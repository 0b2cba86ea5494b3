package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

func gatherFamily(t *testing.T, r *Recorder, name string) *dto.MetricFamily {
	t.Helper()

	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func counterValue(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()

	family := gatherFamily(t, r, name)
	if family == nil {
		return 0
	}
	for _, metric := range family.GetMetric() {
		if labelsMatch(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, pair := range pairs {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestRecorderCountsSuccessfulRun(t *testing.T) {
	rec := NewRecorder()
	runner := &chain.Runner{Chain: "mermaid", Observer: rec}
	generate := func(ctx context.Context, prompt string, vars chain.Context) (string, error) {
		return "out", nil
	}

	_, err := runner.Run(context.Background(), nil, generate, []string{"a", "b"})
	require.NoError(t, err)

	require.Equal(t, 2.0, counterValue(t, rec, "mermaid_agent_chain_steps_total", map[string]string{"chain": "mermaid", "status": StatusOK}))
	require.Equal(t, 1.0, counterValue(t, rec, "mermaid_agent_chain_runs_total", map[string]string{"chain": "mermaid", "status": StatusOK}))

	histogram := gatherFamily(t, rec, "mermaid_agent_generation_duration_seconds")
	require.NotNil(t, histogram)
	require.Len(t, histogram.GetMetric(), 1)
	require.Equal(t, uint64(2), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestRecorderCountsFailedRun(t *testing.T) {
	rec := NewRecorder()
	runner := &chain.Runner{Chain: "mermaid", Observer: rec}
	calls := 0
	generate := func(ctx context.Context, prompt string, vars chain.Context) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("quota")
		}
		return "out", nil
	}

	_, err := runner.Run(context.Background(), nil, generate, []string{"a", "b", "c"})
	require.Error(t, err)

	require.Equal(t, 1.0, counterValue(t, rec, "mermaid_agent_chain_steps_total", map[string]string{"chain": "mermaid", "status": StatusOK}))
	require.Equal(t, 1.0, counterValue(t, rec, "mermaid_agent_chain_steps_total", map[string]string{"chain": "mermaid", "status": StatusError}))
	require.Equal(t, 1.0, counterValue(t, rec, "mermaid_agent_chain_runs_total", map[string]string{"chain": "mermaid", "status": StatusError}))
	require.Equal(t, 0.0, counterValue(t, rec, "mermaid_agent_chain_runs_total", map[string]string{"chain": "mermaid", "status": StatusOK}))
}

func TestRecorderUnnamedChain(t *testing.T) {
	rec := NewRecorder()
	rec.StepFailed(chain.StepInfo{Index: 0, Total: 1}, errors.New("x"))
	require.Equal(t, 1.0, counterValue(t, rec, "mermaid_agent_chain_runs_total", map[string]string{"chain": "unnamed", "status": StatusError}))
}

func TestWriteTextfile(t *testing.T) {
	rec := NewRecorder()
	rec.StepFinished(chain.StepInfo{Chain: "c", Index: 0, Total: 1}, "out", 0)

	path := filepath.Join(t.TempDir(), "textfile", "mermaid_agent.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.Contains(text, `mermaid_agent_chain_runs_total{chain="c",status="ok"} 1`), text)
	require.True(t, strings.Contains(text, "# TYPE mermaid_agent_generation_duration_seconds histogram"), text)
}
