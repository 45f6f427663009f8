// Package openai adapts the OpenAI streaming API to the uniform callback
// contract using the official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/modelarena/internal/adapter/synthetic"
	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/observability"
	"github.com/davidbz/modelarena/internal/tokens"
)

const defaultTemperature = 0.7

// Adapter implements domain.Adapter for OpenAI. One instance serves every
// OpenAI catalog model.
type Adapter struct {
	client    openai.Client
	counter   *tokens.Counter
	synth     *synthetic.Streamer
	cfg       Config
	available bool
}

// NewAdapter creates the OpenAI adapter. A missing API key does not fail
// construction: the adapter is registered anyway and reports the missing
// credentials on every call, so sibling providers keep working.
func NewAdapter(cfg Config, counter *tokens.Counter) *Adapter {
	a := &Adapter{
		counter: counter,
		synth:   synthetic.NewStreamer(),
		cfg:     cfg,
	}
	if cfg.APIKey == "" {
		return a
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	a.client = openai.NewClient(opts...)
	a.available = true
	return a
}

// ProviderName returns the provider identifier.
func (a *Adapter) ProviderName() string {
	return domain.ProviderOpenAI
}

// Available reports whether credentials were present at construction.
func (a *Adapter) Available() bool {
	return a.available
}

// Stream drives one OpenAI streaming call to completion, forwarding each
// delta through cb and settling with exactly one terminal callback.
func (a *Adapter) Stream(
	ctx context.Context,
	model domain.ModelID,
	prompt string,
	cb domain.StreamCallbacks,
) (domain.ModelResult, error) {
	meta, ok := domain.Lookup(model)
	if !ok || meta.Provider != domain.ProviderOpenAI {
		return domain.ModelResult{}, fmt.Errorf("%w: %s is not an OpenAI model", domain.ErrUnknownModel, model)
	}

	logger := observability.FromContext(ctx)

	if !a.available {
		msg := "OpenAI service not available - API key not configured"
		logger.Warn("stream refused", observability.String("reason", msg))
		return a.degrade(ctx, meta, prompt, msg, cb), nil
	}

	start := time.Now()
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(meta.UpstreamName),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(defaultTemperature),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	var usage *domain.TokenUsage
	for stream.Next() {
		chunk := stream.Current()

		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				full.WriteString(delta)
				if cb.OnChunk != nil {
					cb.OnChunk(delta)
				}
			}
		}

		// Usage arrives on the final chunk when IncludeUsage is set.
		if chunk.Usage.TotalTokens > 0 {
			usage = &domain.TokenUsage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}
	}

	if err := stream.Err(); err != nil {
		msg := formatError(err)
		logger.Error("OpenAI stream failed", observability.Error(err))
		if isAuthError(err) {
			return a.degrade(ctx, meta, prompt, "authentication error - "+msg, cb), nil
		}
		if cb.OnError != nil {
			cb.OnError(msg)
		}
		return domain.ModelResult{TimeTakenMs: 0, Error: msg}, nil
	}

	if usage == nil {
		promptTokens := a.counter.Count(meta.UpstreamName, prompt)
		completionTokens := a.counter.Count(meta.UpstreamName, full.String())
		usage = &domain.TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		}
	}

	result := domain.ModelResult{
		Response:        full.String(),
		Tokens:          usage,
		TimeTakenMs:     time.Since(start).Milliseconds(),
		CostEstimateUSD: domain.EstimateCost(usage.TotalTokens, meta.CostPer1KTokens),
	}
	logger.Debug("OpenAI stream completed",
		observability.Int("total_tokens", usage.TotalTokens),
		observability.Int64("time_taken_ms", result.TimeTakenMs),
	)

	if cb.OnComplete != nil {
		cb.OnComplete(result)
	}
	return result, nil
}

// degrade settles a call that cannot reach the upstream: either substitute a
// labeled synthetic response (policy on) or report the error.
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

func isAuthError(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 401 || apierr.StatusCode == 403
	}
	return false
}

func formatError(err error) string {
	var apierr *openai.Error
	if errors.As(err, &apierr) && apierr.Message != "" {
		return apierr.Message
	}
	return err.Error()
}
