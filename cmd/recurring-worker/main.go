package main

import (
	"context"
	"time"

	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/clock"
	"bizdash/internal/log"
	"bizdash/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(log.ComponentRecurring, ""), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(log.ComponentRecurring, cfg.LogLevel)
	logger.Info("Starting recurring-worker")

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	if res.Publisher == nil {
		logger.Info("AMQP disabled - materialized expenses reach summaries on the next rollup pass")
	}

	// Expenses go through RecordService so each one publishes a change event.
	clk := clock.NewReal(cfg.Location())
	records := services.NewRecordService(res.Repository, res.Publisher, clk)
	records.SetInvalidator(services.SnapshotInvalidator{Snapshots: res.Snapshots})
	processor := services.NewRecurringProcessor(res.Repository, records)

	logger.Info("Recurring expense processor configured",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(ctx, cfg.RecurringInterval, clk)
	}()

	<-ctx.Done()
	_ = cli.Shutdown(logger, 30*time.Second,
		cli.ShutdownStep{Name: "processor", Fn: func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		cli.ShutdownStep{Name: "backend", Fn: func(context.Context) error { return res.Cleanup() }},
	)
}
