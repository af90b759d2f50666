// Package llm talks to a Groq-compatible chat completion API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chaintalk-ai/chaintalk/internal/config"
	"github.com/chaintalk-ai/chaintalk/internal/contextwindow"
	"github.com/chaintalk-ai/chaintalk/internal/metrics"
)

// Client issues chat completions against one configured model.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

// NewClient builds an LLM client from configuration.
func NewClient(cfg config.LLMConfig) *Client {
	profile := ResolveProfile(cfg)
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   profile.MaxOutputTokens,
		http:        &http.Client{Timeout: 120 * time.Second},
	}
}

// knownProfiles maps model ids to their token windows. Unknown models get
// the default profile with their own name.
var knownProfiles = map[string]contextwindow.Profile{
	"meta-llama/llama-4-maverick-17b-128e-instruct": {
		Model:            "meta-llama/llama-4-maverick-17b-128e-instruct",
		MaxContextTokens: 128000,
		MaxOutputTokens:  4096,
		CharsPerToken:    4,
	},
	"meta-llama/llama-4-scout-17b-16e-instruct": {
		Model:            "meta-llama/llama-4-scout-17b-16e-instruct",
		MaxContextTokens: 16000,
		MaxOutputTokens:  1000,
		CharsPerToken:    4,
	},
}

// ResolveProfile returns the token window for the configured model, with
// non-zero config fields overriding the built-in values.
func ResolveProfile(cfg config.LLMConfig) contextwindow.Profile {
	profile, ok := knownProfiles[cfg.Model]
	if !ok {
		profile = contextwindow.DefaultProfile()
		profile.Model = cfg.Model
	}
	if cfg.MaxContextTokens > 0 {
		profile.MaxContextTokens = cfg.MaxContextTokens
	}
	if cfg.MaxOutputTokens > 0 {
		profile.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if cfg.CharsPerToken > 0 {
		profile.CharsPerToken = cfg.CharsPerToken
	}
	return profile
}

type chatRequest struct {
	Model       string                        `json:"model"`
	Messages    []contextwindow.PromptMessage `json:"messages"`
	Temperature float64                       `json:"temperature"`
	MaxTokens   int                           `json:"max_tokens,omitempty"`
	Stream      bool                          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete runs one non-streaming completion over the assembled prompt.
func (c *Client) Complete(ctx context.Context, prompt []contextwindow.PromptMessage) (string, error) {
	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	}()

	resp, err := c.post(ctx, chatRequest{
		Model:       c.model,
		Messages:    prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Chunk is one incremental piece of a streamed completion. Err is set on
// the final chunk when the stream ended abnormally.
type Chunk struct {
	Content string
	Err     error
}

// Stream runs a streaming completion. The returned channel is closed when
// the stream finishes; the caller owns ctx cancellation.
func (c *Client) Stream(ctx context.Context, prompt []contextwindow.PromptMessage) (<-chan Chunk, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:       c.model,
		Messages:    prompt,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("llm: status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		start := time.Now()
		defer func() {
			metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
		}()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}
			var parsed chatResponse
			if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
				continue
			}
			if len(parsed.Choices) == 0 {
				continue
			}
			if delta := parsed.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- Chunk{Content: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- Chunk{Err: fmt.Errorf("llm stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func (c *Client) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	return resp, nil
}

// Healthy reports whether the API answers the models listing.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode == http.StatusOK
}

// Model returns the configured model id.
func (c *Client) Model() string { return c.model }

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
