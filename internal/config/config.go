package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tally/internal/common"
)

// EnvPrefix prefixes every environment override, e.g. TALLY_LLM_PROVIDER.
const EnvPrefix = "TALLY"

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/tally/tally.db"

// Config is the typed application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	IMAP     IMAPConfig     `mapstructure:"imap"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pattern  PatternConfig  `mapstructure:"pattern"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// DatabaseConfig locates the message store.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// EngineConfig tunes the aggregator.
type EngineConfig struct {
	MaxWorkers int  `mapstructure:"max_workers" validate:"gte=0,lte=256"`
	Sequential bool `mapstructure:"sequential"`
}

// PatternConfig holds the transaction keywords of the pattern strategy.
type PatternConfig struct {
	Keywords []string `mapstructure:"keywords" validate:"min=1,dive,required"`
}

// LLMConfig configures the model strategy.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=openai anthropic"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model       string        `mapstructure:"model"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gte=0"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RateLimit   int           `mapstructure:"rate_limit" validate:"gte=0"`
	Temperature float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gte=0"`
}

// IMAPConfig holds mailbox credentials.
type IMAPConfig struct {
	Server   string `mapstructure:"server" validate:"required,hostname_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Mailbox  string `mapstructure:"mailbox" validate:"required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
	TLS             bool          `mapstructure:"tls"`
	CertDir         string        `mapstructure:"cert_dir" validate:"required_if=TLS true"`
}

// SetDefaults registers every key with its default so that environment
// overrides are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("engine.max_workers", 0)
	v.SetDefault("engine.sequential", false)

	v.SetDefault("pattern.keywords", []string{"debited", "credited"})

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "500ms")
	v.SetDefault("llm.call_timeout", "15s")
	v.SetDefault("llm.cache_ttl", "15m")
	v.SetDefault("llm.rate_limit", 0)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_tokens", 10)

	v.SetDefault("imap.server", "imap.gmail.com:993")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", "INBOX")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "$HOME/.config/tally/certs")
}

// BindEnv enables TALLY_* overrides plus the conventional provider and mail variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("imap.username", EnvPrefix+"_IMAP_USERNAME", "EMAIL_USER")
	_ = v.BindEnv("imap.password", EnvPrefix+"_IMAP_PASSWORD", "EMAIL_PASS")
}

// Load builds and validates a Config from v. Missing provider keys fall back to
// OPENAI_API_KEY or ANTHROPIC_API_KEY.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Server.CertDir = ExpandPath(cfg.Server.CertDir)

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidConfig, strings.Join(msgs, "; "))
}
