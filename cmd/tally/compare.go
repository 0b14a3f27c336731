package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tally/internal/cli"
	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/engine"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/profile"
	"github.com/Veraticus/spice-tally/internal/service"
)

type compareOutput struct {
	RunID          string                `json:"run_id"`
	Range          string                `json:"range"`
	PatternResults map[string]int        `json:"pattern_results"`
	PatternMetrics model.ResourceMetrics `json:"pattern_metrics"`
	ModelResults   map[string]int        `json:"model_results"`
	ModelMetrics   model.ResourceMetrics `json:"model_metrics"`
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [files...]",
		Short: "Profile the pattern and model strategies side by side",
		Long: `Run the pattern and the model strategy over the same messages and report
both per-day counts together with the resource cost of each run.

Without --start and --end the range spans the earliest and latest message
dates. The runs are concurrent unless --sequential is given, which keeps
their CPU and memory measurements apart.`,
		RunE: runCompare,
	}

	cmd.Flags().String("start", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "last day of the range (YYYY-MM-DD)")
	cmd.Flags().Bool("sequential", false, "run the strategies one after the other")
	cmd.Flags().Bool("from-db", false, "include messages from the message store")
	cmd.Flags().Int("workers", 0, "maximum concurrent day tasks per strategy")
	cmd.Flags().Bool("json", false, "print the report as JSON")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	fromDB, _ := cmd.Flags().GetBool("from-db")
	asJSON, _ := cmd.Flags().GetBool("json")

	if (start == "") != (end == "") {
		return common.NewUserError("Give both --start and --end, or neither", model.ErrInvalidRange)
	}

	var (
		r      model.DateRange
		filter service.MessageFilter
	)
	if start != "" {
		var err error
		r, err = model.NewDateRange(start, end)
		if err != nil {
			return common.NewUserError("Invalid date range", err)
		}
		filter = rangeFilter(r)
	}

	matcher, err := buildPattern(appCfg)
	if err != nil {
		return err
	}
	classifier, err := buildModel(appCfg, logger)
	if err != nil {
		return err
	}

	messages, err := loadMessages(ctx, args, fromDB, filter, logger)
	if err != nil {
		return err
	}

	if start == "" {
		r, err = model.SpanOf(messages)
		if err != nil {
			return common.NewUserError("No messages with a valid date to compare", err)
		}
		logger.Info("using message date span", "range", r.String())
	}

	progress := newProgress(cmd, 2*r.Len(), "Comparing strategies")
	comparer := engine.NewComparer(matcher, classifier,
		profile.New(profile.WithLogger(logger)),
		engineOptions(cmd, appCfg, logger, observers(progress)...)...)

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	runCtx := interrupts.HandleInterrupts(ctx, false)

	report, err := comparer.Compare(runCtx, messages, r)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		if interrupts.WasInterrupted() {
			return common.NewUserError("Comparison interrupted", err)
		}
		return fmt.Errorf("comparison failed: %w", err)
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), compareOutput{
			RunID:          report.RunID,
			Range:          report.Range,
			PatternResults: report.PatternResults.Counts,
			PatternMetrics: report.PatternMetrics,
			ModelResults:   report.ModelResults.Counts,
			ModelMetrics:   report.ModelMetrics,
		})
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderComparison(report))
	return err
}
