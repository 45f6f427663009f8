package xai

// Config contains xAI adapter configuration. The xAI API speaks the OpenAI
// wire protocol, so the fields mirror the OpenAI SDK options with an xAI
// base URL.
type Config struct {
	APIKey     string `env:"XAI_API_KEY"`
	BaseURL    string `env:"XAI_BASE_URL"     envDefault:"https://api.x.ai/v1"`
	Timeout    int    `env:"XAI_TIMEOUT"      envDefault:"120"`
	MaxRetries int    `env:"XAI_MAX_RETRIES"  envDefault:"2"`

	// MockOnAuthFailure substitutes a labeled synthetic response when the
	// upstream rejects credentials, instead of surfacing a hard error.
	MockOnAuthFailure bool `env:"XAI_MOCK_ON_AUTH_FAILURE" envDefault:"false"`
}
