package mock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/modelarena/arena/src/ai/core"
)

// Client is a deterministic offline provider. It lets the arena run
// end-to-end (chat, judging, scoring) without any API keys.
type Client struct {
	Name string
}

func init() {
	core.RegisterProvider("mock", func(cfg core.FactoryConfig) (core.Client, error) {
		name := cfg.Model
		if name == "" {
			name = "mock"
		}
		return &Client{Name: name}, nil
	})
}

func (c *Client) Respond(ctx context.Context, input string, opts core.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := c.Name
	if opts.Model != "" {
		name = opts.Model
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(input))
	return fmt.Sprintf("[%s] response %08x to: %s", name, h.Sum32(), head(input)), nil
}

// RespondStream delivers the mock answer as a handful of chunks.
func (c *Client) RespondStream(ctx context.Context, input string, opts core.Options, fn func(chunk string) error) error {
	full, err := c.Respond(ctx, input, opts)
	if err != nil {
		return err
	}
	const chunkSize = 16
	for i := 0; i < len(full); i += chunkSize {
		end := i + chunkSize
		if end > len(full) {
			end = len(full)
		}
		if err := fn(full[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func head(s string) string {
	if len(s) > 48 {
		return s[:48]
	}
	return s
}
