package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tally/internal/cli"
	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/engine"
	"github.com/Veraticus/spice-tally/internal/llm"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/pattern"
	"github.com/Veraticus/spice-tally/internal/profile"
)

type aggregateOutput struct {
	Results  map[string]int        `json:"results"`
	Strategy string                `json:"strategy"`
	Metrics  model.ResourceMetrics `json:"metrics"`
	Skipped  int                   `json:"skipped"`
	Errors   []model.DayError      `json:"errors,omitempty"`
}

func aggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate [files...]",
		Short: "Count transaction messages per day",
		Long: `Count the transaction messages of every day between --start and --end.

Input comes from JSON, OFX or QFX files and, with --from-db, from messages
saved by "tally import". Every day of the range is reported, including days
without transactions. The run is profiled and its wall time, CPU and memory
deltas are printed alongside the counts.`,
		Example: `  tally aggregate --start 2023-08-01 --end 2023-10-31 messages.json
  tally aggregate --start 2023-08-01 --end 2023-08-31 --strategy model --from-db`,
		RunE: runAggregate,
	}

	cmd.Flags().String("start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last day of the range (YYYY-MM-DD)")
	cmd.Flags().String("strategy", pattern.StrategyName, "classification strategy (pattern, model)")
	cmd.Flags().Bool("from-db", false, "include messages from the message store")
	cmd.Flags().Int("workers", 0, "maximum concurrent day tasks (default from config or min(32, CPUs+4))")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func runAggregate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	strategy, _ := cmd.Flags().GetString("strategy")
	fromDB, _ := cmd.Flags().GetBool("from-db")
	asJSON, _ := cmd.Flags().GetBool("json")

	r, err := model.NewDateRange(start, end)
	if err != nil {
		return common.NewUserError("Invalid date range", err)
	}

	classifier, err := classifierFor(strategy, logger)
	if err != nil {
		return err
	}

	messages, err := loadMessages(ctx, args, fromDB, rangeFilter(r), logger)
	if err != nil {
		return err
	}

	progress := newProgress(cmd, r.Len(), "Classifying "+classifier.Name())
	agg := engine.NewAggregator(classifier, engineOptions(cmd, appCfg, logger, observers(progress)...)...)

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	runCtx := interrupts.HandleInterrupts(ctx, true)

	profiler := profile.New(profile.WithLogger(logger))
	result, metrics, err := profile.Run(runCtx, profiler, func(ctx context.Context) (model.AggregateResult, error) {
		return agg.Aggregate(ctx, messages, r)
	})
	if progress != nil {
		progress.Finish()
	}
	if err != nil && !interrupts.WasInterrupted() {
		return fmt.Errorf("aggregation failed: %w", err)
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), aggregateOutput{
			Results:  result.Counts,
			Strategy: result.Strategy,
			Metrics:  metrics,
			Skipped:  result.Skipped,
			Errors:   result.Errors,
		})
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderAggregate(result, metrics))
	return err
}

// classifierFor builds the classifier of the named strategy.
func classifierFor(strategy string, logger *slog.Logger) (engine.Classifier, error) {
	switch strategy {
	case pattern.StrategyName:
		matcher, err := buildPattern(appCfg)
		if err != nil {
			return nil, err
		}
		return matcher, nil
	case llm.StrategyName:
		classifier, err := buildModel(appCfg, logger)
		if err != nil {
			return nil, err
		}
		return classifier, nil
	default:
		return nil, common.NewUserError(
			fmt.Sprintf("Unknown strategy %q; use %s or %s", strategy, pattern.StrategyName, llm.StrategyName),
			common.ErrUnknownStrategy)
	}
}
