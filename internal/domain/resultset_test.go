package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/modelarena/internal/domain"
)

func TestResultSet(t *testing.T) {
	t.Run("should preserve insertion order", func(t *testing.T) {
		var rs domain.ResultSet
		rs.Set("xAI-Grok 3 Beta", domain.ModelResult{Response: "first"})
		rs.Set("OpenAI-GPT-4o", domain.ModelResult{Response: "second"})
		rs.Set("Anthropic-Claude 3.5 Sonnet", domain.ModelResult{Response: "third"})

		require.Equal(t, []string{
			"xAI-Grok 3 Beta",
			"OpenAI-GPT-4o",
			"Anthropic-Claude 3.5 Sonnet",
		}, rs.Keys())
	})

	t.Run("should keep position when replacing an existing key", func(t *testing.T) {
		var rs domain.ResultSet
		rs.Set("a", domain.ModelResult{Response: "one"})
		rs.Set("b", domain.ModelResult{Response: "two"})
		rs.Set("a", domain.ModelResult{Response: "updated"})

		require.Equal(t, []string{"a", "b"}, rs.Keys())
		result, ok := rs.Get("a")
		require.True(t, ok)
		require.Equal(t, "updated", result.Response)
		require.Equal(t, 2, rs.Len())
	})

	t.Run("should round-trip through JSON keeping order", func(t *testing.T) {
		var rs domain.ResultSet
		rs.Set("xAI-Grok 3 Beta", domain.ModelResult{Response: "fast", TimeTakenMs: 120})
		rs.Set("OpenAI-GPT-4o", domain.ModelResult{
			Response:    "slow",
			Tokens:      &domain.TokenUsage{PromptTokens: 3, CompletionTokens: 7, TotalTokens: 10},
			TimeTakenMs: 900,
		})

		data, err := json.Marshal(rs)
		require.NoError(t, err)
		require.Contains(t, string(data), `"version":1`)

		var restored domain.ResultSet
		require.NoError(t, json.Unmarshal(data, &restored))
		require.Equal(t, rs.Keys(), restored.Keys())

		result, ok := restored.Get("OpenAI-GPT-4o")
		require.True(t, ok)
		require.Equal(t, "slow", result.Response)
		require.NotNil(t, result.Tokens)
		require.Equal(t, 10, result.Tokens.TotalTokens)
	})

	t.Run("should reject an unsupported version", func(t *testing.T) {
		var rs domain.ResultSet
		err := json.Unmarshal([]byte(`{"version":2,"entries":[]}`), &rs)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported result set version")
	})

	t.Run("zero value should be usable", func(t *testing.T) {
		var rs domain.ResultSet
		require.Zero(t, rs.Len())
		require.Empty(t, rs.Keys())
		_, ok := rs.Get("missing")
		require.False(t, ok)
	})
}
