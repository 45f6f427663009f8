// Package anthropic adapts the Anthropic Messages streaming API to the
// uniform callback contract. There is no official Go SDK in use here; the
// adapter drives a small SSE client over the public HTTP API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/modelarena/internal/adapter/synthetic"
	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/observability"
	"github.com/davidbz/modelarena/internal/tokens"
)

const defaultTemperature = 0.7

// Adapter implements domain.Adapter for Anthropic. One instance serves every
// Claude catalog model.
type Adapter struct {
	client    *Client
	counter   *tokens.Counter
	synth     *synthetic.Streamer
	cfg       Config
	available bool
}

// NewAdapter creates the Anthropic adapter. A missing API key does not fail
// construction; every call then reports the missing credentials instead.
func NewAdapter(cfg Config, counter *tokens.Counter) *Adapter {
	return &Adapter{
		client:    NewClient(cfg),
		counter:   counter,
		synth:     synthetic.NewStreamer(),
		cfg:       cfg,
		available: cfg.APIKey != "",
	}
}

// ProviderName returns the provider identifier.
func (a *Adapter) ProviderName() string {
	return domain.ProviderAnthropic
}

// Available reports whether credentials were present at construction.
func (a *Adapter) Available() bool {
	return a.available
}

// Stream drives one Messages streaming call to completion, forwarding each
// text delta through cb and settling with exactly one terminal callback.
func (a *Adapter) Stream(
	ctx context.Context,
	model domain.ModelID,
	prompt string,
	cb domain.StreamCallbacks,
) (domain.ModelResult, error) {
	meta, ok := domain.Lookup(model)
	if !ok || meta.Provider != domain.ProviderAnthropic {
		return domain.ModelResult{}, fmt.Errorf("%w: %s is not an Anthropic model", domain.ErrUnknownModel, model)
	}

	logger := observability.FromContext(ctx)

	if !a.available {
		msg := "Anthropic service not available - API key not configured"
		logger.Warn("stream refused", observability.String("reason", msg))
		return a.degrade(ctx, meta, prompt, msg, cb), nil
	}

	start := time.Now()
	results, err := a.client.Stream(ctx, messagesRequest{
		Model:       meta.UpstreamName,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: defaultTemperature,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return a.settleFailure(ctx, meta, prompt, err, cb), nil
	}

	var full strings.Builder
	var inputTokens, outputTokens int
	for res := range results {
		if res.Err != nil {
			logger.Error("Anthropic stream failed", observability.Error(res.Err))
			return a.settleFailure(ctx, meta, prompt, res.Err, cb), nil
		}
		if res.Delta != "" {
			full.WriteString(res.Delta)
			if cb.OnChunk != nil {
				cb.OnChunk(res.Delta)
			}
		}
		if res.InputTokens > 0 {
			inputTokens = res.InputTokens
		}
		if res.OutputTokens > 0 {
			outputTokens = res.OutputTokens
		}
		if res.Done {
			break
		}
	}

	usage := &domain.TokenUsage{
		PromptTokens:     inputTokens,
		CompletionTokens: outputTokens,
	}
	// Each usage half arrives in its own stream event; estimate whichever
	// the upstream omitted.
	if usage.PromptTokens == 0 {
		usage.PromptTokens = a.counter.Count(meta.UpstreamName, prompt)
	}
	if usage.CompletionTokens == 0 {
		usage.CompletionTokens = a.counter.Count(meta.UpstreamName, full.String())
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	result := domain.ModelResult{
		Response:        full.String(),
		Tokens:          usage,
		TimeTakenMs:     time.Since(start).Milliseconds(),
		CostEstimateUSD: domain.EstimateCost(usage.TotalTokens, meta.CostPer1KTokens),
	}
	logger.Debug("Anthropic stream completed",
		observability.Int("total_tokens", usage.TotalTokens),
		observability.Int64("time_taken_ms", result.TimeTakenMs),
	)

	if cb.OnComplete != nil {
		cb.OnComplete(result)
	}
	return result, nil
}

// settleFailure turns an upstream failure into a settled result: credential
// rejections may substitute a labeled synthetic response per policy, every
// other failure is reported through OnError.
func (a *Adapter) settleFailure(
	ctx context.Context,
	meta domain.ModelMetadata,
	prompt string,
	cause error,
	cb domain.StreamCallbacks,
) domain.ModelResult {
	var authErr *AuthError
	if errors.As(cause, &authErr) {
		return a.degrade(ctx, meta, prompt, "authentication error - "+authErr.Message, cb)
	}

	if cb.OnError != nil {
		cb.OnError(cause.Error())
	}
	return domain.ModelResult{TimeTakenMs: 0, Error: cause.Error()}
}

func (a *Adapter) degrade(
	ctx context.Context,
	meta domain.ModelMetadata,
	prompt, cause string,
	cb domain.StreamCallbacks,
) domain.ModelResult {
	if a.cfg.MockOnAuthFailure {
		return a.synth.Substitute(ctx, meta, prompt, cause, cb)
	}
	if cb.OnError != nil {
		cb.OnError(cause)
	}
	return domain.ModelResult{TimeTakenMs: 0, Error: cause}
}
