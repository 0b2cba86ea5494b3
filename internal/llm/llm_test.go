package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
	"github.com/opencode-ai/mermaid-agent/internal/config"
)

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey, gotQuery, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		gotQuery = r.URL.RawQuery

		var req geminiRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err == nil && len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotText = req.Contents[0].Parts[0].Text
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"graph TD; "},{"text":"A-->B"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-1.5-pro-latest")
	client.BaseURL = server.URL

	out, err := client.Generate(context.Background(), "draw a graph", nil)
	require.NoError(t, err)
	require.Equal(t, "graph TD; A-->B", out)
	require.Equal(t, "/models/gemini-1.5-pro-latest:generateContent", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Empty(t, gotQuery)
	require.Equal(t, "draw a graph", gotText)
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http status", http.StatusBadRequest, `{"error":{"message":"bad key"}}`, "bad key"},
		{"no candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyResponse.Error()},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, "SAFETY"},
		{"empty parts", http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"MAX_TOKENS"}]}`, "MAX_TOKENS"},
		{"bad json", http.StatusOK, `{`, "decode gemini response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewGeminiClient("k", "")
			client.BaseURL = server.URL

			_, err := client.Generate(context.Background(), "p", nil)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGeminiKeyStaysOutOfErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewGeminiClient("SECRET-KEY-123", "")
	client.BaseURL = baseURL

	_, err := client.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "call gemini")
	require.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestGeminiHTTPClientDefaultsWithoutMutation(t *testing.T) {
	client := &GeminiClient{}
	require.Equal(t, defaultGeminiTimeout, client.httpClient().Timeout)
	require.Nil(t, client.Client)
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	client := NewGeminiClient("", "")
	_, err := client.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key")
}

func TestGeminiDrivesRunner(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": "reply to " + req.Contents[0].Parts[0].Text}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer server.Close()

	client := NewGeminiClient("k", "m")
	client.BaseURL = server.URL

	runner := &chain.Runner{}
	result, err := runner.Run(context.Background(), chain.Context{"x": "one"}, AsGenerateFunc(client), []string{"{{x}}", "{{output[-1]}}"})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, []string{"reply to one", "reply to reply to one"}, result.Outputs)
}

func TestCommandGenerator(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	gen := &CommandGenerator{Command: []string{"cat"}}
	out, err := gen.Generate(context.Background(), "  echoed prompt\n", nil)
	require.NoError(t, err)
	require.Equal(t, "echoed prompt", out)
}

func TestCommandGeneratorFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	gen := &CommandGenerator{Command: []string{"sh", "-c", "echo boom >&2; exit 3"}}
	_, err := gen.Generate(context.Background(), "p", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	gen = &CommandGenerator{Command: []string{"sh", "-c", "cat >/dev/null"}}
	_, err = gen.Generate(context.Background(), "p", nil)
	require.True(t, errors.Is(err, ErrEmptyResponse))

	gen = &CommandGenerator{Command: []string{"sh", "-c", "sleep 5"}, Timeout: 50 * time.Millisecond}
	_, err = gen.Generate(context.Background(), "p", nil)
	require.Error(t, err)

	_, err = (&CommandGenerator{}).Generate(context.Background(), "p", nil)
	require.Error(t, err)
}

func TestEchoGenerator(t *testing.T) {
	out, err := EchoGenerator{Prefix: "> "}.Generate(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "> hi", out)
}

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{"command", "echo", "gemini"}, DefaultRegistry.Names())

	gen, err := New(config.LLMConfig{Backend: "Gemini", APIKey: "k", Model: "m", BaseURL: "http://x", Timeout: time.Second})
	require.NoError(t, err)
	gemini, ok := gen.(*GeminiClient)
	require.True(t, ok)
	require.Equal(t, "http://x", gemini.BaseURL)
	require.Equal(t, time.Second, gemini.Client.Timeout)

	gen, err = New(config.LLMConfig{Backend: "command", Command: []string{"llm"}})
	require.NoError(t, err)
	require.IsType(t, &CommandGenerator{}, gen)

	_, err = New(config.LLMConfig{Backend: "command"})
	require.Error(t, err)

	_, err = New(config.LLMConfig{Backend: "nope"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "available"))

	r := NewRegistry()
	require.NoError(t, r.Register("a", func(config.LLMConfig) (Generator, error) { return EchoGenerator{}, nil }))
	require.Error(t, r.Register("A", func(config.LLMConfig) (Generator, error) { return EchoGenerator{}, nil }))
	require.Error(t, r.Register("", nil))
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced with language", "```mermaid\ngraph TD\n  A-->B\n```", "graph TD\n  A-->B"},
		{"fenced without language", "```\npie\n```\n", "pie"},
		{"surrounding prose", "Here you go:\n```mermaid\ngraph LR\n```\nEnjoy", "graph LR"},
		{"no fence", "  graph TD\n", "graph TD"},
		{"unterminated fence", "```mermaid\ngraph TD", "```mermaid\ngraph TD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}
