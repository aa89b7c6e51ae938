package openai

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

	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/webclient"
)

const (
	endpoint         = "https://api.openai.com/v1/chat/completions"
	defaultMaxTokens = 1024
)

type client struct {
	apiKey     string
	httpClient *http.Client
	defaults   core.Options
}

func init() {
	core.RegisterProvider("openai", func(cfg core.FactoryConfig) (core.Client, error) {
		return NewClient(cfg, "gpt-4o-mini")
	}, "gpt")
}

// NewClient constructs an OpenAI-backed implementation of core.Client with the
// provided default model name.
func NewClient(cfg core.FactoryConfig, defaultModel string) (core.Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &client{
		apiKey:     cfg.OpenAIKey,
		httpClient: webclient.NewDefault(60 * time.Second),
		defaults: core.Options{
			Model:               model,
			Temperature:         cfg.Temperature,
			MaxCompletionTokens: cfg.MaxCompletionTokens,
			SystemPrompt:        cfg.SystemPrompt,
		},
	}, nil
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	if opts.SystemPrompt != "" {
		out.SystemPrompt = opts.SystemPrompt
	}
	return out
}

func (c *client) payload(opts core.Options, input string, stream bool) map[string]interface{} {
	maxTokens := opts.MaxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	messages := []map[string]string{}
	if opts.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": opts.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": input})
	body := map[string]interface{}{
		"model":       opts.Model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": opts.Temperature,
	}
	if stream {
		body["stream"] = true
	}
	return body
}

func (c *client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	merged := c.merge(opts)
	bodyBytes, _ := json.Marshal(c.payload(merged, input, false))

	status, respBody, err := webclient.DoWithRetry(ctx, 3, 2*time.Second, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(bodyBytes))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		return "", fmt.Errorf("openai: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai: status %d: %s", status, truncate(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: empty response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// RespondStream issues a streaming completion and forwards content deltas to fn.
func (c *client) RespondStream(ctx context.Context, input string, opts core.Options, fn func(chunk string) error) error {
	merged := c.merge(opts)
	bodyBytes, _ := json.Marshal(c.payload(merged, input, true))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(b))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := fn(chunk.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("openai: stream: %w", err)
	}
	return nil
}

func truncate(b []byte) string {
	s := string(b)
	if len(s) > 256 {
		return s[:256]
	}
	return s
}
