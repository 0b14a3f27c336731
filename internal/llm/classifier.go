package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/service"
)

// StrategyName identifies the model strategy in results and metrics.
const StrategyName = "model"

const (
	defaultMaxTokens   = 10
	defaultCallTimeout = 15 * time.Second
)

// promptTemplate embeds the message content; %s is replaced verbatim.
const promptTemplate = "Given the transaction content: '%s', classify it as 'debited' or 'credited'. " +
	"If it is not a transaction, answer 'none'. Respond with the classification only."

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	CallTimeout time.Duration
	CacheTTL    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// Classifier labels messages by asking a TextCompleter.
// Each message, retries included, is bounded by CallTimeout; failures come back as
// LabelUnknown with an error wrapping common.ErrClassificationFailed.
type Classifier struct {
	completer   TextCompleter
	cache       *labelCache
	limiter     *rateLimiter
	logger      *slog.Logger
	retryOpts   service.RetryOptions
	maxTokens   int
	callTimeout time.Duration
}

// NewClassifier wraps an existing completer.
func NewClassifier(completer TextCompleter, cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	return &Classifier{
		completer:   completer,
		cache:       newLabelCache(cfg.CacheTTL),
		limiter:     newRateLimiter(cfg.RateLimit),
		logger:      logger,
		maxTokens:   maxTokens,
		callTimeout: callTimeout,
		retryOpts: service.RetryOptions{
			MaxAttempts:  cfg.MaxRetries,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// NewClassifierFromConfig builds the provider client and wraps it.
func NewClassifierFromConfig(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifier(client, cfg, logger), nil
}

// Name returns the strategy name.
func (c *Classifier) Name() string {
	return StrategyName
}

// BuildPrompt renders the fixed classification prompt for one message body.
func BuildPrompt(content string) string {
	return fmt.Sprintf(promptTemplate, content)
}

// Classify asks the model for a label.
func (c *Classifier) Classify(ctx context.Context, msg model.Message) (model.Label, error) {
	key := contentKey(msg.Content)
	if label, ok := c.cache.get(key); ok {
		c.logger.Debug("cache hit for message", "date", msg.Date)
		return label, nil
	}

	prompt := BuildPrompt(msg.Content)

	// Queueing for the first token does not count against the message deadline.
	if err := c.limiter.wait(ctx); err != nil {
		return model.LabelUnknown, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	// callTimeout bounds the message as a whole, retries and backoff included.
	msgCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	attempt := 0
	text, err := common.Retry(msgCtx, c.retryOpts, c.logger, func(ctx context.Context) (string, error) {
		attempt++
		if attempt > 1 {
			if err := c.limiter.wait(ctx); err != nil {
				return "", common.Permanent(err)
			}
		}

		text, err := c.completer.Complete(ctx, prompt, c.maxTokens)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", common.ErrEmptyCompletion
		}
		return text, nil
	})
	if err != nil {
		c.logger.Warn("model classification failed",
			"date", msg.Date,
			"error", err)
		return model.LabelUnknown, fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
	}

	label := model.NormalizeLabel(text)
	c.cache.set(key, label)

	c.logger.Debug("message classified",
		"date", msg.Date,
		"label", label)

	return label, nil
}

func contentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}
