package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opencode-ai/mermaid-agent/internal/chain"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel matches the model the mer command was built around.
	DefaultGeminiModel = "gemini-1.5-pro-latest"

	defaultGeminiTimeout = 2 * time.Minute

	// geminiAPIKeyHeader carries the key. It must not be put in the URL,
	// which transport errors quote.
	geminiAPIKeyHeader = "x-goog-api-key"
)

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	BaseURL string
	Model   string
	APIKey  string
	Client  *http.Client
}

// NewGeminiClient constructs a client with defaults applied.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		BaseURL: DefaultGeminiBaseURL,
		Model:   model,
		APIKey:  strings.TrimSpace(apiKey),
		Client:  &http.Client{Timeout: defaultGeminiTimeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt as a single user turn and returns the text of the
// first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, _ chain.Context) (string, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(geminiAPIKeyHeader, c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponseBody(resp)
	if err != nil {
		return "", err
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", decoded.PromptFeedback.BlockReason)
	}
	if len(decoded.Candidates) == 0 {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		if reason := decoded.Candidates[0].FinishReason; reason != "" {
			return "", fmt.Errorf("gemini: %w (finish reason %s)", ErrEmptyResponse, reason)
		}
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text.String(), nil
}

func (c *GeminiClient) endpoint() (string, error) {
	if c == nil {
		return "", errors.New("gemini client is nil")
	}
	if c.APIKey == "" {
		return "", errors.New("gemini API key is empty (set GEMINI_API_KEY)")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	model := strings.TrimPrefix(strings.TrimSpace(c.Model), "models/")
	if model == "" {
		model = DefaultGeminiModel
	}
	return fmt.Sprintf("%s/models/%s:generateContent", baseURL, url.PathEscape(model)), nil
}

func (c *GeminiClient) httpClient() *http.Client {
	if c.Client == nil {
		return &http.Client{Timeout: defaultGeminiTimeout}
	}
	return c.Client
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if snippet == "" {
			snippet = resp.Status
		}
		return nil, fmt.Errorf("gemini request failed (%s): %s", resp.Status, snippet)
	}

	return body, nil
}
