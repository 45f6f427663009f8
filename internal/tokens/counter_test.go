package tokens_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/modelarena/internal/tokens"
)

func TestEstimate(t *testing.T) {
	t.Run("should round up to whole tokens", func(t *testing.T) {
		require.Zero(t, tokens.Estimate(""))
		require.Equal(t, 1, tokens.Estimate("a"))
		require.Equal(t, 1, tokens.Estimate("abcd"))
		require.Equal(t, 2, tokens.Estimate("abcde"))
		require.Equal(t, 25, tokens.Estimate(strings.Repeat("x", 100)))
	})
}

func TestCounter(t *testing.T) {
	t.Run("should count tokens exactly for known models", func(t *testing.T) {
		c := tokens.NewCounter()

		count := c.Count("gpt-4o", "Hello, world!")
		require.Positive(t, count)
		// A short sentence is a handful of tokens, not a handful of characters.
		require.Less(t, count, 10)
	})

	t.Run("should fall back to the character estimate for unknown models", func(t *testing.T) {
		c := tokens.NewCounter()
		text := strings.Repeat("y", 40)

		require.Equal(t, tokens.Estimate(text), c.Count("claude-3-5-sonnet-20241022", text))
		require.Equal(t, tokens.Estimate(text), c.Count("grok-3", text))
	})

	t.Run("should return zero for empty text", func(t *testing.T) {
		c := tokens.NewCounter()
		require.Zero(t, c.Count("gpt-4o", ""))
	})

	t.Run("should be safe for concurrent use", func(t *testing.T) {
		c := tokens.NewCounter()
		done := make(chan struct{})
		for i := 0; i < 8; i++ {
			go func() {
				defer func() { done <- struct{}{} }()
				for j := 0; j < 50; j++ {
					c.Count("gpt-4o", "concurrent counting")
					c.Count("unknown-model", "concurrent counting")
				}
			}()
		}
		for i := 0; i < 8; i++ {
			<-done
		}
	})
}
