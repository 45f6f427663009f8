package anthropic

// Config contains Anthropic adapter configuration.
type Config struct {
	APIKey    string `env:"ANTHROPIC_API_KEY"`
	BaseURL   string `env:"ANTHROPIC_BASE_URL"   envDefault:"https://api.anthropic.com"`
	Timeout   int    `env:"ANTHROPIC_TIMEOUT"    envDefault:"120"`
	MaxTokens int    `env:"ANTHROPIC_MAX_TOKENS" envDefault:"4000"`

	// MockOnAuthFailure substitutes a labeled synthetic response when the
	// upstream rejects credentials, instead of surfacing a hard error.
	MockOnAuthFailure bool `env:"ANTHROPIC_MOCK_ON_AUTH_FAILURE" envDefault:"true"`
}
