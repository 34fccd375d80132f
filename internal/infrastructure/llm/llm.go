package llm

import (
	"fmt"

	"IntelRadar/internal/config"
	"IntelRadar/internal/ports"
)

// New selects the provider named in configuration.
func New(cfg config.ExtractorConfig) (ports.LanguageModel, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown extractor provider %q", cfg.Provider)
	}
}
