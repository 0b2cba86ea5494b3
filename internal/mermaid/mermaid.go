// Package mermaid renders mermaid chart source to images through a
// mermaid.ink compatible service.
package mermaid

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the public mermaid.ink service.
const DefaultBaseURL = "https://mermaid.ink"

const defaultTimeout = 30 * time.Second

// ErrEmptyChart is returned when there is nothing to render.
var ErrEmptyChart = errors.New("mermaid chart is empty")

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatSVG  Format = "svg"
)

// FormatForPath picks the format from a file extension. Unknown extensions
// render as jpeg, the service default.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG
	case ".webp":
		return FormatWebP
	case ".svg":
		return FormatSVG
	default:
		return FormatJPEG
	}
}

// Client renders charts over HTTP.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient constructs a client with defaults applied.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Encode returns the URL-safe base64 form of chart used in render URLs.
func Encode(chart string) string {
	return base64.URLEncoding.EncodeToString([]byte(chart))
}

// URL returns the render URL for chart in format.
func (c *Client) URL(chart string, format Format) string {
	baseURL := DefaultBaseURL
	if c != nil {
		if trimmed := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"); trimmed != "" {
			baseURL = trimmed
		}
	}

	encoded := Encode(chart)
	switch format {
	case FormatSVG:
		return baseURL + "/svg/" + encoded
	case FormatJPEG, "":
		return baseURL + "/img/" + encoded
	default:
		return baseURL + "/img/" + encoded + "?type=" + string(format)
	}
}

// Render fetches the rendered image bytes.
func (c *Client) Render(ctx context.Context, chart string, format Format) ([]byte, error) {
	if strings.TrimSpace(chart) == "" {
		return nil, ErrEmptyChart
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(chart, format), nil)
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("call mermaid renderer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		if snippet == "" {
			snippet = resp.Status
		}
		return nil, fmt.Errorf("render failed (%s): %s", resp.Status, snippet)
	}
	return body, nil
}

// RenderToFile renders chart in the format implied by path and writes it.
func (c *Client) RenderToFile(ctx context.Context, chart, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("output path is required")
	}

	data, err := c.Render(ctx, chart, FormatForPath(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.Client == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	return c.Client
}
