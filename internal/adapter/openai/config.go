package openai

// Config contains OpenAI adapter configuration. Fields map to OpenAI SDK
// options (WithAPIKey, WithBaseURL, WithRequestTimeout, WithMaxRetries).
type Config struct {
	APIKey     string `env:"OPENAI_API_KEY"`
	BaseURL    string `env:"OPENAI_BASE_URL"     envDefault:"https://api.openai.com/v1"`
	Timeout    int    `env:"OPENAI_TIMEOUT"      envDefault:"120"`
	MaxRetries int    `env:"OPENAI_MAX_RETRIES"  envDefault:"2"`

	// MockOnAuthFailure substitutes a labeled synthetic response when the
	// upstream rejects credentials, instead of surfacing a hard error.
	MockOnAuthFailure bool `env:"OPENAI_MOCK_ON_AUTH_FAILURE" envDefault:"false"`
}
