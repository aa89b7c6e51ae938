// ai-smoketest exercises the configured model providers outside the
// server: one synchronous round and, where supported, one streamed
// round per provider. Useful when rotating API keys or adding models.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/modelarena/arena/src/ai/core"
	"github.com/modelarena/arena/src/ai/providers"
)

var (
	providersFlag = flag.String("providers", "mock", "Comma-separated provider list or 'all'")
	modelFlag     = flag.String("model", "", "Override model name")
	promptFlag    = flag.String("prompt", defaultPrompt, "Prompt to send")
	timeoutFlag   = flag.Duration("timeout", 45*time.Second, "Per-provider timeout")
	tempFlag      = flag.Float64("temp", 0.2, "Completion temperature")
	maxLenFlag    = flag.Int("max-bytes", 1200, "Maximum bytes of output to print per response (0=unlimited)")
)

const defaultPrompt = "In two sentences, what makes a good benchmark prompt for comparing language models?"

var allProviders = []string{"openai", "anthropic", "mock"}

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
	"mock":      "mock-alpha",
}

func main() {
	log.SetFlags(0)
	flag.Parse()

	names := resolveProviders(*providersFlag)
	if len(names) == 0 {
		log.Fatal("no providers specified")
	}

	pool := providers.NewPool(core.FactoryConfig{
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		ClaudeKey: os.Getenv("ANTHROPIC_API_KEY"),
	})

	failures := 0
	for _, name := range names {
		if err := smoke(pool, name); err != nil {
			log.Printf("✗ %s: %v", name, err)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
	log.Printf("✓ %d provider(s) passed", len(names))
}

func smoke(pool *providers.Pool, name string) error {
	client, err := pool.Client(name)
	if err != nil {
		return err
	}
	opts := core.Options{
		Model:       pickModel(name),
		Temperature: *tempFlag,
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	started := time.Now()
	answer, err := client.Respond(ctx, *promptFlag, opts)
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	log.Printf("%s respond (%s, %v):\n%s", name, opts.Model, time.Since(started).Round(time.Millisecond), clip(answer))

	s, ok := client.(core.Streamer)
	if !ok {
		log.Printf("%s: streaming not supported", name)
		return nil
	}
	started = time.Now()
	chunks := 0
	var b strings.Builder
	err = s.RespondStream(ctx, *promptFlag, opts, func(chunk string) error {
		chunks++
		b.WriteString(chunk)
		return nil
	})
	if err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	log.Printf("%s stream (%d chunks, %v):\n%s", name, chunks, time.Since(started).Round(time.Millisecond), clip(b.String()))
	return nil
}

func pickModel(provider string) string {
	if *modelFlag != "" {
		return *modelFlag
	}
	return defaultModels[provider]
}

func resolveProviders(raw string) []string {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return allProviders
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clip(s string) string {
	if *maxLenFlag > 0 && len(s) > *maxLenFlag {
		return s[:*maxLenFlag] + "…[truncated]"
	}
	return s
}
