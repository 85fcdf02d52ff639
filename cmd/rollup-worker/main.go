package main

import (
	"context"
	"errors"
	"time"

	"bizdash/internal/amqp"
	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/clock"
	"bizdash/internal/log"
	"bizdash/internal/ports"
	"bizdash/internal/services"
	gsheet "bizdash/internal/sheets/google"
	"bizdash/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(log.ComponentWorker, ""), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)
	logger.Info("Starting rollup-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	// The worker consumes change events and never publishes them.
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}

	var exporter ports.SummaryExporter
	if cfg.SheetsEnabled() {
		exp, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSummarySheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets exporter", err)
		}
		exporter = exp
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	rollupCfg := services.DefaultRollupProcessorConfig()
	if cfg.RollupInterval > 0 {
		rollupCfg.PollInterval = cfg.RollupInterval
	}
	if cfg.RollupBatchSize > 0 {
		rollupCfg.BatchSize = cfg.RollupBatchSize
	}
	if cfg.RollupLookbackDays > 0 {
		rollupCfg.LookbackDays = cfg.RollupLookbackDays
	}
	processor := services.NewRollupProcessor(res.Repository, exporter, res.Locker, clock.NewReal(cfg.Location()), rollupCfg)
	rollups := worker.NewRollupWorker(processor)

	logger.Info("Performing startup catch-up...")
	if err := rollups.StartupCatchUp(ctx); err != nil {
		logger.Error("Startup catch-up failed", log.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start rollup processor", err)
	}

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic passes", log.FieldError, err)
		} else {
			go func() {
				if err := consumer.ConsumeRecordChanged(ctx, rollups.HandleRecordChanged); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Message consumption failed", log.FieldError, err)
					cancel()
				}
			}()
			logger.Info("Consuming record change events", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - summaries refresh on the periodic pass only",
			"interval", rollupCfg.PollInterval)
	}

	<-ctx.Done()

	steps := []cli.ShutdownStep{
		{Name: "rollup", Fn: processor.Stop},
	}
	if consumer != nil {
		steps = append(steps, cli.ShutdownStep{Name: "amqp", Fn: func(context.Context) error { return consumer.Close() }})
	}
	steps = append(steps, cli.ShutdownStep{Name: "backend", Fn: func(context.Context) error { return res.Cleanup() }})
	_ = cli.Shutdown(logger, 30*time.Second, steps...)
}
