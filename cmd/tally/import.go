package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-tally/internal/cli"
	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/ingest"
	"github.com/Veraticus/spice-tally/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Save messages to the message store",
		Long: `Import messages from JSON, OFX or QFX files into the local message store.

Glob patterns are expanded. Messages are deduplicated on their date, content
and source, so importing the same file twice adds nothing. Stored messages are
read back with --from-db on aggregate and compare.`,
		Example: `  tally import messages.json
  tally import "statements/*.qfx"
  tally import imap --since 2023-08-01`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportFiles,
	}

	cmd.Flags().Bool("dry-run", false, "parse the files without saving")

	cmd.AddCommand(importIMAPCmd())
	return cmd
}

func importIMAPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imap",
		Short: "Fetch notification mails over IMAP",
		Long: `Log in to the configured mailbox (imap.server, imap.username, imap.password),
fetch every mail received since --since and save the first plain-text part
of each as a message dated by its Date header.`,
		Args: cobra.NoArgs,
		RunE: runImportIMAP,
	}

	cmd.Flags().String("since", time.Now().AddDate(0, 0, -30).Format(model.DateLayout), "fetch mails received on or after this day (YYYY-MM-DD)")
	cmd.Flags().String("mailbox", "", "mailbox to read (default from config)")
	cmd.Flags().Bool("dry-run", false, "fetch the mails without saving")

	return cmd
}

func runImportFiles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandInputs(args)
	if err != nil {
		return err
	}

	var messages []model.Message
	for _, path := range files {
		loaded, err := ingest.LoadFile(ctx, path, logger)
		if err != nil {
			return common.NewUserError(fmt.Sprintf("Failed to load %s", path), err)
		}
		fmt.Println(cli.FormatInfo(fmt.Sprintf("%s: %d messages", path, len(loaded)))) //nolint:forbidigo // User-facing output
		messages = append(messages, loaded...)
	}

	return saveImported(cmd, messages, dryRun)
}

func runImportIMAP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	sinceFlag, _ := cmd.Flags().GetString("since")
	mailbox, _ := cmd.Flags().GetString("mailbox")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	since, err := model.ParseDay(sinceFlag)
	if err != nil {
		return common.NewUserError("Invalid --since date", err)
	}

	imapCfg := imapConfig(appCfg.IMAP)
	if mailbox != "" {
		imapCfg.Mailbox = mailbox
	}

	fetcher, err := ingest.NewIMAPFetcher(imapCfg, logger)
	if err != nil {
		return common.NewUserError("IMAP credentials are not configured; set imap.username and imap.password", err)
	}

	messages, err := fetcher.Fetch(ctx, since)
	if err != nil {
		return common.NewUserError("Failed to fetch mails", err)
	}
	fmt.Println(cli.FormatInfo(fmt.Sprintf("Fetched %d mails from %s", len(messages), imapCfg.Mailbox))) //nolint:forbidigo // User-facing output

	return saveImported(cmd, messages, dryRun)
}

func saveImported(cmd *cobra.Command, messages []model.Message, dryRun bool) error {
	if len(messages) == 0 {
		fmt.Println(cli.FormatWarning("No messages to import")) //nolint:forbidigo // User-facing output
		return nil
	}
	if dryRun {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Dry run: %d messages parsed, nothing saved", len(messages)))) //nolint:forbidigo // User-facing output
		return nil
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	inserted, err := store.SaveMessages(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to save messages: %w", err)
	}

	total, err := store.CountMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d new messages (%d duplicates, %d stored)", //nolint:forbidigo // User-facing output
		inserted, len(messages)-inserted, total)))
	return nil
}
