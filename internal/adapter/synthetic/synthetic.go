// Package synthetic produces clearly labeled placeholder responses,
// substituted when a provider call cannot succeed but the comparison view
// should stay populated. The result's error field always records that a
// substitution occurred, so synthetic content is never mistaken for a real
// completion.
package synthetic

import (
	"context"
	"fmt"
	"time"

	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/tokens"
)

const (
	defaultChunkDelay = 10 * time.Millisecond
	chunkSize         = 8
)

// ResponseText builds the labeled placeholder body for a model.
func ResponseText(displayName, prompt string) string {
	return fmt.Sprintf(
		"I'm sorry, but I'm unable to respond right now due to authentication issues. "+
			"This is a mock response from %s. The prompt was: %q.",
		displayName, prompt,
	)
}

// Streamer emits placeholder responses through the standard callback
// contract, pacing chunks to resemble a live stream.
type Streamer struct {
	// ChunkDelay is the pause between emitted chunks. Tests set it to zero.
	ChunkDelay time.Duration
}

// NewStreamer creates a streamer with the default pacing.
func NewStreamer() *Streamer {
	return &Streamer{ChunkDelay: defaultChunkDelay}
}

// Substitute streams the placeholder response for meta and settles the
// callbacks exactly once via OnComplete, with cause recorded in the result's
// error field. Completion (not error) keeps the synthetic text visible to
// subscribers while the error field disambiguates it from real content.
// Cancellation mid-pacing truncates the response to the streamed chunks.
func (s *Streamer) Substitute(
	ctx context.Context,
	meta domain.ModelMetadata,
	prompt, cause string,
	cb domain.StreamCallbacks,
) domain.ModelResult {
	start := time.Now()
	text := ResponseText(meta.DisplayName, prompt)

	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		if cb.OnChunk != nil {
			cb.OnChunk(text[i:end])
		}

		if s.ChunkDelay > 0 {
			select {
			case <-time.After(s.ChunkDelay):
			case <-ctx.Done():
				// Settle with exactly the chunks already emitted, so the
				// response always matches their concatenation.
				text = text[:end]
			}
		}
	}

	usage := domain.TokenUsage{
		PromptTokens:     tokens.Estimate(prompt),
		CompletionTokens: tokens.Estimate(text),
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	result := domain.ModelResult{
		Response:        text,
		Tokens:          &usage,
		TimeTakenMs:     time.Since(start).Milliseconds(),
		CostEstimateUSD: domain.EstimateCost(usage.TotalTokens, meta.CostPer1KTokens),
		Error:           cause,
	}
	if cb.OnComplete != nil {
		cb.OnComplete(result)
	}
	return result
}
