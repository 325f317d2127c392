package llm

import (
	"fmt"

	"github.com/jxucoder/autopr/internal/config"
)

// NewFromConfig creates the provider selected by the configuration.
func NewFromConfig(cfg *config.Config) (Client, error) {
	Verbose = cfg.Verbose
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
