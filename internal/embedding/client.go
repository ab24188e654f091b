package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/logging"
	"paperlens/internal/providers"
	"paperlens/internal/util"
)

const (
	DefaultMaxChars  = 8000
	DefaultBatchSize = 20
	DefaultTimeout   = 30 * time.Second
)

type Options struct {
	Dimension int
	BatchSize int
	MaxChars  int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Client truncates, batches and order-checks calls to an embedding
// provider. A nil provider means no credential is configured.
type Client struct {
	provider providers.EmbeddingProvider
	opts     Options
	log      *zap.Logger
}

func NewClient(p providers.EmbeddingProvider, opts Options) *Client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{provider: p, opts: opts, log: logging.OrNop(opts.Logger)}
}

func (c *Client) Available() bool {
	return c != nil && c.provider != nil && c.provider.Available()
}

func (c *Client) Dimension() int { return c.opts.Dimension }

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, texts, "document", providers.OpEmbedChunks)
}

func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := c.embed(ctx, []string{text}, "query", providers.OpEmbedQuery)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *Client) embed(ctx context.Context, texts []string, inputType, op string) ([][]float32, error) {
	if !c.Available() {
		return nil, fmt.Errorf("embed: %w", util.ErrProviderUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i], _ = util.TruncateRunes(t, c.opts.MaxChars)
	}

	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(inputs))
		batch := inputs[start:end]

		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		vecs, info, err := c.provider.Embed(callCtx, providers.EmbedRequest{
			Operation: op,
			Inputs:    batch,
			Dimension: c.opts.Dimension,
			InputType: inputType,
		})
		cancel()
		if err != nil {
			c.log.Debug("embedding batch failed",
				zap.String("provider", info.Name),
				zap.Int("batch_start", start),
				zap.String("error_type", string(providers.ClassifyError(err))),
				zap.Error(err))
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: provider %s returned %d vectors for %d inputs", start, end, info.Name, len(vecs), len(batch))
		}
		if want := c.opts.Dimension; want > 0 {
			for i, v := range vecs {
				if len(v) != want {
					return nil, fmt.Errorf("embed batch %d-%d: provider %s returned a %d-dim vector at %d, want %d", start, end, info.Name, len(v), start+i, want)
				}
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
