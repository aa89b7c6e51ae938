package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/webclient"
)

const (
	endpoint         = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens = 1024
)

type client struct {
	apiKey     string
	httpClient *http.Client
	defaults   core.Options
}

func init() {
	core.RegisterProvider("anthropic", func(cfg core.FactoryConfig) (core.Client, error) {
		return NewClient(cfg, "claude-3-5-haiku-latest")
	}, "claude")
}

// NewClient constructs an Anthropic-backed implementation of core.Client with the
// provided default model name.
func NewClient(cfg core.FactoryConfig, defaultModel string) (core.Client, error) {
	if cfg.ClaudeKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &client{
		apiKey:     cfg.ClaudeKey,
		httpClient: webclient.NewDefault(60 * time.Second),
		defaults: core.Options{
			Model:               model,
			Temperature:         cfg.Temperature,
			MaxCompletionTokens: cfg.MaxCompletionTokens,
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := c.defaults
	if opts.Model != "" {
		merged.Model = opts.Model
	}
	if opts.Temperature != 0 {
		merged.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		merged.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if opts.SystemPrompt != "" {
		merged.SystemPrompt = opts.SystemPrompt
	}

	maxTokens := merged.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]interface{}{
		"model":       merged.Model,
		"max_tokens":  maxTokens,
		"temperature": merged.Temperature,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]string{
					{"type": "text", "text": input},
				},
			},
		},
	}
	if merged.SystemPrompt != "" {
		body["system"] = merged.SystemPrompt
	}

	bodyBytes, _ := json.Marshal(body)
	status, respBody, err := webclient.DoWithRetry(ctx, 3, 2*time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		return resp.StatusCode, b, nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	if status != http.StatusOK {
		if len(respBody) > 256 {
			respBody = respBody[:256]
		}
		return "", fmt.Errorf("anthropic: status %d: %s", status, respBody)
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: decode: %w", err)
	}
	var out string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	if out == "" {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return out, nil
}
