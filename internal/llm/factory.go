package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a raw completion client based on the provided configuration.
func NewClient(cfg Config) (TextCompleter, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
