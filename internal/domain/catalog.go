package domain

// ModelID identifies a logical model: a provider plus one of its variants.
// The catalog of known ids is fixed at compile time.
type ModelID string

const (
	// OpenAI models
	ModelOpenAIGPT4o     ModelID = "openai-gpt4o"
	ModelOpenAIGPT4oMini ModelID = "openai-gpt4o-mini"

	// Anthropic models
	ModelClaude35Sonnet ModelID = "anthropic-claude35-sonnet"
	ModelClaude35Haiku  ModelID = "anthropic-claude35-haiku"
	ModelClaude37Sonnet ModelID = "anthropic-claude37-sonnet"
	ModelClaude4Sonnet  ModelID = "anthropic-claude4-sonnet"
	ModelClaude4Opus    ModelID = "anthropic-claude4-opus"

	// xAI models
	ModelGrok2         ModelID = "xai-grok2"
	ModelGrok3Beta     ModelID = "xai-grok3-beta"
	ModelGrok3MiniBeta ModelID = "xai-grok3-mini-beta"
	ModelGrok4         ModelID = "xai-grok4"
)

// Provider names used for registry dispatch and result keys.
const (
	ProviderOpenAI    = "OpenAI"
	ProviderAnthropic = "Anthropic"
	ProviderXAI       = "xAI"
)

// ModelMetadata describes one catalog entry.
type ModelMetadata struct {
	DisplayName     string  `json:"name"`
	Provider        string  `json:"provider"`
	Description     string  `json:"description"`
	ContextWindow   int     `json:"contextWindow"`
	CostPer1KTokens float64 `json:"costPer1kTokens"`

	// UpstreamName is the model identifier on the provider's wire protocol.
	UpstreamName string `json:"-"`
}

// ResultKey is the display key a model's result is stored and emitted under.
func (m ModelMetadata) ResultKey() string {
	return m.Provider + "-" + m.DisplayName
}

//nolint:gochecknoglobals // Compile-time catalog, never mutated after init.
var catalog = map[ModelID]ModelMetadata{
	ModelOpenAIGPT4o: {
		DisplayName:     "GPT-4o",
		Provider:        ProviderOpenAI,
		Description:     "Most capable GPT-4 model, great for complex tasks",
		ContextWindow:   128000,
		CostPer1KTokens: 0.01,
		UpstreamName:    "gpt-4o",
	},
	ModelOpenAIGPT4oMini: {
		DisplayName:     "GPT-4o Mini",
		Provider:        ProviderOpenAI,
		Description:     "Faster, cost-effective version of GPT-4o",
		ContextWindow:   128000,
		CostPer1KTokens: 0.00015,
		UpstreamName:    "gpt-4o-mini",
	},
	ModelClaude35Sonnet: {
		DisplayName:     "Claude 3.5 Sonnet",
		Provider:        ProviderAnthropic,
		Description:     "Balanced performance and speed for most tasks",
		ContextWindow:   200000,
		CostPer1KTokens: 0.003,
		UpstreamName:    "claude-3-5-sonnet-20241022",
	},
	ModelClaude35Haiku: {
		DisplayName:     "Claude 3.5 Haiku",
		Provider:        ProviderAnthropic,
		Description:     "Fastest Claude model for quick responses",
		ContextWindow:   200000,
		CostPer1KTokens: 0.00025,
		UpstreamName:    "claude-3-5-haiku-20241022",
	},
	ModelClaude37Sonnet: {
		DisplayName:     "Claude 3.7 Sonnet",
		Provider:        ProviderAnthropic,
		Description:     "Enhanced version with extended thinking capabilities",
		ContextWindow:   200000,
		CostPer1KTokens: 0.004,
		UpstreamName:    "claude-3-7-sonnet-20250219",
	},
	ModelClaude4Sonnet: {
		DisplayName:     "Claude 4 Sonnet",
		Provider:        ProviderAnthropic,
		Description:     "Latest Claude model with advanced reasoning",
		ContextWindow:   200000,
		CostPer1KTokens: 0.005,
		UpstreamName:    "claude-sonnet-4-20250514",
	},
	ModelClaude4Opus: {
		DisplayName:     "Claude 4 Opus",
		Provider:        ProviderAnthropic,
		Description:     "Most powerful Claude model for complex tasks",
		ContextWindow:   200000,
		CostPer1KTokens: 0.015,
		UpstreamName:    "claude-opus-4-20250514",
	},
	ModelGrok2: {
		DisplayName:     "Grok 2",
		Provider:        ProviderXAI,
		Description:     "Previous generation Grok model",
		ContextWindow:   131072,
		CostPer1KTokens: 0.002,
		UpstreamName:    "grok-2-latest",
	},
	ModelGrok3Beta: {
		DisplayName:     "Grok 3 Beta",
		Provider:        ProviderXAI,
		Description:     "Advanced reasoning with superior mathematics and coding",
		ContextWindow:   131072,
		CostPer1KTokens: 0.002,
		UpstreamName:    "grok-3",
	},
	ModelGrok3MiniBeta: {
		DisplayName:     "Grok 3 Mini Beta",
		Provider:        ProviderXAI,
		Description:     "Lightweight real-time language model",
		ContextWindow:   131072,
		CostPer1KTokens: 0.0002,
		UpstreamName:    "grok-3-mini",
	},
	ModelGrok4: {
		DisplayName:     "Grok 4",
		Provider:        ProviderXAI,
		Description:     "Latest Grok model with 10x more compute and advanced reasoning",
		ContextWindow:   256000,
		CostPer1KTokens: 0.002,
		UpstreamName:    "grok-4",
	},
}

// Lookup returns the metadata for a model id.
func Lookup(id ModelID) (ModelMetadata, bool) {
	meta, ok := catalog[id]
	return meta, ok
}

// CatalogIDs returns every registered model id.
func CatalogIDs() []ModelID {
	ids := make([]ModelID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	return ids
}

// DefaultModels is the baseline set used when a submission names no models.
func DefaultModels() []ModelID {
	return []ModelID{ModelOpenAIGPT4oMini, ModelClaude35Sonnet, ModelGrok3Beta}
}

const tokensPerK = 1000.0

// EstimateCost computes the USD cost of totalTokens at a per-1K-token rate.
// The value is unrounded; rounding belongs to the presentation layer.
func EstimateCost(totalTokens int, costPer1K float64) float64 {
	return float64(totalTokens) * (costPer1K / tokensPerK)
}
