// Package tokens provides token counting for cost and usage estimation.
// OpenAI-family models get exact counts via tiktoken; everything else falls
// back to a documented character-count approximation.
package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// charsPerToken is the rough approximation used when no tokenizer covers a
// model: one token per four characters of English text.
const charsPerToken = 4

// Estimate returns ceil(len(text) / 4). This is an approximation, not an
// exact count.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Counter counts tokens for a given upstream model name. Codecs are cached
// per model; unknown models use Estimate.
type Counter struct {
	mu     sync.RWMutex
	codecs map[string]tokenizer.Codec
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{
		codecs: make(map[string]tokenizer.Codec),
	}
}

// Count returns the token count of text for model, falling back to the
// character estimate when no tokenizer is available.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}

	codec, err := c.codec(model)
	if err != nil {
		return Estimate(text)
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return Estimate(text)
	}
	return len(ids)
}

func (c *Counter) codec(model string) (tokenizer.Codec, error) {
	c.mu.RLock()
	cached, ok := c.codecs[model]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.ForModel(tokenizer.Model(model))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[model] = codec
	c.mu.Unlock()
	return codec, nil
}
