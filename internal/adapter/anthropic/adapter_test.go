package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/modelarena/internal/domain"
	"github.com/davidbz/modelarena/internal/tokens"
)

type callbackRecorder struct {
	chunks    []string
	completes []domain.ModelResult
	errors    []string
}

func (r *callbackRecorder) callbacks() domain.StreamCallbacks {
	return domain.StreamCallbacks{
		OnChunk:    func(text string) { r.chunks = append(r.chunks, text) },
		OnComplete: func(result domain.ModelResult) { r.completes = append(r.completes, result) },
		OnError:    func(message string) { r.errors = append(r.errors, message) },
	}
}

func TestAdapterStream(t *testing.T) {
	ctx := context.Background()
	counter := tokens.NewCounter()

	t.Run("should stream chunks and settle with reported usage", func(t *testing.T) {
		srv := sseServer(t, []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":" there"}}`,
			`{"type":"message_delta","usage":{"output_tokens":7}}`,
			`{"type":"message_stop"}`,
		}, nil)
		defer srv.Close()

		adapter := NewAdapter(testConfig(srv.URL), counter)
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "hi", rec.callbacks())
		require.NoError(t, err)

		require.Equal(t, []string{"Hello", " there"}, rec.chunks)
		require.Len(t, rec.completes, 1)
		require.Empty(t, rec.errors)
		require.Equal(t, "Hello there", result.Response)
		require.Equal(t, 19, result.Tokens.TotalTokens)
		require.Positive(t, result.CostEstimateUSD)
		require.Empty(t, result.Error)
	})

	t.Run("should estimate usage when the stream reports none", func(t *testing.T) {
		srv := sseServer(t, []string{
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"no usage events here"}}`,
			`{"type":"message_stop"}`,
		}, nil)
		defer srv.Close()

		adapter := NewAdapter(testConfig(srv.URL), counter)
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "hi", rec.callbacks())
		require.NoError(t, err)
		require.NotNil(t, result.Tokens)
		require.Positive(t, result.Tokens.TotalTokens)
	})

	t.Run("should estimate the missing usage half when only one is reported", func(t *testing.T) {
		srv := sseServer(t, []string{
			`{"type":"message_start","message":{"usage":{"input_tokens":12}}}`,
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"reply without a message_delta"}}`,
			`{"type":"message_stop"}`,
		}, nil)
		defer srv.Close()

		adapter := NewAdapter(testConfig(srv.URL), counter)
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "hi", rec.callbacks())
		require.NoError(t, err)
		require.Equal(t, 12, result.Tokens.PromptTokens)
		require.Positive(t, result.Tokens.CompletionTokens)
		require.Equal(t, result.Tokens.PromptTokens+result.Tokens.CompletionTokens, result.Tokens.TotalTokens)
	})

	t.Run("should settle with an error when the stream is cut off mid-message", func(t *testing.T) {
		srv := sseServer(t, []string{
			`{"type":"content_block_delta","delta":{"type":"text_delta","text":"partial answ"}}`,
		}, nil)
		defer srv.Close()

		adapter := NewAdapter(testConfig(srv.URL), counter)
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "hi", rec.callbacks())
		require.NoError(t, err)

		require.Empty(t, rec.completes)
		require.Len(t, rec.errors, 1)
		require.Contains(t, result.Error, "message_stop")
		require.Empty(t, result.Response)
	})

	t.Run("should substitute a labeled response when the key is missing and policy allows", func(t *testing.T) {
		cfg := Config{BaseURL: "http://unused", Timeout: 1, MaxTokens: 100, MockOnAuthFailure: true}
		adapter := NewAdapter(cfg, counter)
		adapter.synth.ChunkDelay = 0
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "Explain recursion", rec.callbacks())
		require.NoError(t, err)

		require.Len(t, rec.completes, 1)
		require.Empty(t, rec.errors)
		require.Contains(t, result.Response, "mock response from Claude 3.5 Sonnet")
		require.Contains(t, result.Error, "not available")
		require.Equal(t, result.Response, strings.Join(rec.chunks, ""))
	})

	t.Run("should report a plain error when the key is missing and policy forbids substitution", func(t *testing.T) {
		cfg := Config{BaseURL: "http://unused", Timeout: 1, MaxTokens: 100}
		adapter := NewAdapter(cfg, counter)
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Sonnet, "hi", rec.callbacks())
		require.NoError(t, err)

		require.Empty(t, rec.completes)
		require.Len(t, rec.errors, 1)
		require.Contains(t, result.Error, "not available")
		require.Zero(t, result.TimeTakenMs)
	})

	t.Run("should substitute on upstream credential rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		}))
		defer srv.Close()

		cfg := testConfig(srv.URL)
		cfg.MockOnAuthFailure = true
		adapter := NewAdapter(cfg, counter)
		adapter.synth.ChunkDelay = 0
		rec := &callbackRecorder{}

		result, err := adapter.Stream(ctx, domain.ModelClaude35Haiku, "hi", rec.callbacks())
		require.NoError(t, err)

		require.Len(t, rec.completes, 1)
		require.Contains(t, result.Error, "authentication error - invalid x-api-key")
		require.Contains(t, result.Response, "mock response from Claude 3.5 Haiku")
	})

	t.Run("should refuse models of other providers", func(t *testing.T) {
		adapter := NewAdapter(Config{APIKey: "k", BaseURL: "http://unused", Timeout: 1}, counter)

		_, err := adapter.Stream(ctx, domain.ModelOpenAIGPT4o, "hi", domain.StreamCallbacks{})
		require.ErrorIs(t, err, domain.ErrUnknownModel)
	})
}
