// Package llm provides the language-model classification strategy.
// It talks to OpenAI or Anthropic completion endpoints through a single
// TextCompleter capability, with per-call timeouts, retries, rate limiting
// and label caching.
package llm
