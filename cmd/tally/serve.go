package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-tally/internal/certs"
	"github.com/Veraticus/spice-tally/internal/config"
	"github.com/Veraticus/spice-tally/internal/ingest"
	"github.com/Veraticus/spice-tally/internal/metrics"
	"github.com/Veraticus/spice-tally/internal/profile"
	"github.com/Veraticus/spice-tally/internal/server"
	"github.com/Veraticus/spice-tally/internal/service"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aggregation API over HTTP",
		Long: `Start the HTTP API:

  POST /api/v1/aggregate      count transactions per day
  POST /api/v1/compare        profile both strategies side by side
  POST /api/v1/fetch-emails   fetch mails over IMAP, then aggregate
  GET  /healthz               liveness
  GET  /metrics               Prometheus metrics

The model strategy is available only when an API key is configured.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from config, :8080)")
	cmd.Flags().Int("workers", 0, "maximum concurrent day tasks per aggregation")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate from server.cert_dir")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	matcher, err := buildPattern(appCfg)
	if err != nil {
		return err
	}

	opts := server.Options{
		Pattern:       matcher,
		Profiler:      profile.New(profile.WithLogger(logger)),
		Gatherer:      reg,
		Logger:        logger,
		EngineOptions: engineOptions(cmd, appCfg, logger, recorder),
		NewFetcher:    fetcherFactory(appCfg.IMAP, logger),
	}

	if classifier, err := buildModel(appCfg, logger); err != nil {
		logger.Warn("model strategy disabled", "error", err)
	} else {
		opts.Model = classifier
	}

	if appCfg.IMAP.Username != "" && appCfg.IMAP.Password != "" {
		fetcher, err := ingest.NewIMAPFetcher(imapConfig(appCfg.IMAP), logger)
		if err != nil {
			return fmt.Errorf("failed to configure imap: %w", err)
		}
		opts.Fetcher = fetcher
	}

	if appCfg.Server.TLS {
		opts.Certificates = certs.NewFileManager(appCfg.Server.CertDir)
	}

	store, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Warn("message store unavailable", "database", appCfg.Database.Path, "error", err)
	} else {
		defer func() { _ = store.Close() }()
		opts.Store = store
	}

	srv, err := server.New(appCfg.Server, opts)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

func imapConfig(conf config.IMAPConfig) ingest.IMAPConfig {
	return ingest.IMAPConfig{
		Server:   conf.Server,
		Username: conf.Username,
		Password: conf.Password,
		Mailbox:  conf.Mailbox,
	}
}

// fetcherFactory builds fetchers for credentials given per request, falling
// back to the configured server and mailbox.
func fetcherFactory(conf config.IMAPConfig, logger *slog.Logger) server.FetcherFactory {
	return func(host, username, password string) (service.MessageSource, error) {
		cfg := imapConfig(conf)
		if host != "" {
			cfg.Server = host
		}
		cfg.Username = username
		cfg.Password = password
		return ingest.NewIMAPFetcher(cfg, logger)
	}
}
