package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicClient completes prompts with the Anthropic Messages API.
type AnthropicClient struct {
	apiKey string
	model  string
	client *http.Client
}

// NewAnthropicClient creates an Anthropic-backed client. An empty model
// uses the default.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		apiKey: apiKey,
		model:  model,
		client: http.DefaultClient,
	}
}

// Complete sends a Messages API request and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	body := map[string]any{
		"model":      c.model,
		"max_tokens": 8192,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}
	if opts.HighReasoning {
		body["max_tokens"] = 16384
		body["thinking"] = map[string]any{
			"type":          "enabled",
			"budget_tokens": 8192,
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	for _, block := range result.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
