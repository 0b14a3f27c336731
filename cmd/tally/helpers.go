package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tally/internal/cli"
	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/config"
	"github.com/Veraticus/spice-tally/internal/engine"
	"github.com/Veraticus/spice-tally/internal/ingest"
	"github.com/Veraticus/spice-tally/internal/llm"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/pattern"
	"github.com/Veraticus/spice-tally/internal/service"
	"github.com/Veraticus/spice-tally/internal/storage"
)

// initStorage opens the message store and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func buildPattern(cfg *config.Config) (*pattern.Matcher, error) {
	matcher, err := pattern.NewMatcher(pattern.RulesFromKeywords(cfg.Pattern.Keywords))
	if err != nil {
		return nil, common.NewUserError("Invalid pattern keywords", err)
	}
	return matcher, nil
}

func llmConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		CallTimeout: cfg.LLM.CallTimeout,
		CacheTTL:    cfg.LLM.CacheTTL,
		RateLimit:   cfg.LLM.RateLimit,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
}

// buildModel creates the model classifier, failing with a user error when no
// API key is configured.
func buildModel(cfg *config.Config, logger *slog.Logger) (*llm.Classifier, error) {
	if cfg.LLM.APIKey == "" {
		return nil, common.NewUserError(
			fmt.Sprintf("No API key for the %s provider; set llm.api_key or TALLY_LLM_API_KEY", cfg.LLM.Provider),
			common.ErrMissingConfig)
	}

	classifier, err := llm.NewClassifierFromConfig(llmConfig(cfg), logger)
	if err != nil {
		return nil, common.NewUserError("Failed to initialize the language model", err)
	}
	return classifier, nil
}

// engineOptions turns the engine config and flags into aggregator options.
func engineOptions(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, obs ...engine.Observer) []engine.Option {
	workers := cfg.Engine.MaxWorkers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	sequential := cfg.Engine.Sequential
	if cmd.Flags().Lookup("sequential") != nil && cmd.Flags().Changed("sequential") {
		sequential, _ = cmd.Flags().GetBool("sequential")
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithSequential(sequential),
	}
	if workers > 0 {
		opts = append(opts, engine.WithMaxWorkers(workers))
	}
	if len(obs) > 0 {
		opts = append(opts, engine.WithObserver(engine.Observers(obs)))
	}
	return opts
}

// expandInputs resolves glob patterns in file arguments.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, common.NewUserError(fmt.Sprintf("No files match %q", arg), os.ErrNotExist)
		}
		files = append(files, matches...)
	}
	return files, nil
}

// loadMessages reads every input file and, with fromDB, the stored messages
// inside filter.
func loadMessages(ctx context.Context, args []string, fromDB bool, filter service.MessageFilter, logger *slog.Logger) ([]model.Message, error) {
	files, err := expandInputs(args)
	if err != nil {
		return nil, err
	}

	var messages []model.Message
	for _, path := range files {
		loaded, err := ingest.LoadFile(ctx, path, logger)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("Failed to load %s", path), err)
		}
		logger.Debug("loaded input file", "path", path, "messages", len(loaded))
		messages = append(messages, loaded...)
	}

	if fromDB {
		store, err := initStorage(ctx, appCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		stored, err := store.GetMessages(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to read stored messages: %w", err)
		}
		logger.Debug("loaded stored messages", "database", store.Path(), "messages", len(stored))
		messages = append(messages, stored...)
	}

	if len(files) == 0 && !fromDB {
		return nil, common.NewUserError("Give at least one input file or --from-db", common.ErrNoMessages)
	}
	return messages, nil
}

// rangeFilter limits a store query to r.
func rangeFilter(r model.DateRange) service.MessageFilter {
	start, end := r.Start, r.End
	return service.MessageFilter{StartDate: &start, EndDate: &end}
}

// newProgress returns a progress bar on stderr, or nil when disabled.
func newProgress(cmd *cobra.Command, total int, description string) *cli.Progress {
	quiet, _ := cmd.Flags().GetBool("no-progress")
	asJSON, _ := cmd.Flags().GetBool("json")
	if quiet || asJSON || total == 0 {
		return nil
	}
	return cli.NewProgress(cmd.ErrOrStderr(), total, description)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// observers drops a disabled progress bar from the observer list.
func observers(progress *cli.Progress, rest ...engine.Observer) []engine.Observer {
	if progress == nil {
		return rest
	}
	return append(rest, progress)
}
