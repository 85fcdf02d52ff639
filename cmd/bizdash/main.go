package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/clock"
	"bizdash/internal/fxrate"
	apphttp "bizdash/internal/http"
	"bizdash/internal/log"
	"bizdash/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger(log.ComponentApp, ""), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

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

	clk := clock.NewReal(cfg.Location())
	rates := fxrate.New(fxrate.Config{
		URL:       cfg.FXRatesURL,
		Base:      cfg.FXBaseCurrency,
		Secondary: cfg.FXSecondaryCurrency,
		Fallback:  cfg.FallbackRate(),
		Refresh:   cfg.FXRefreshInterval,
	}, nil, clk)
	if cfg.FXRatesURL != "" {
		go refreshRates(ctx, logger.WithComponent(log.ComponentFXRate), rates, cfg.FXRefreshInterval)
	}

	records := services.NewRecordService(res.Repository, res.Publisher, clk)
	dashboard := services.NewDashboardService(res.Repository, res.Snapshots, rates, clk)
	records.SetInvalidator(dashboard)
	reports := services.NewReportService(res.Repository, clk)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Records:   records,
		Dashboard: dashboard,
		Reports:   reports,
		Logger:    logger.WithComponent(log.ComponentHTTP),
		Location:  cfg.Location(),
		Ready:     readiness(res.Repository),
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting bizdash server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		}
	}

	_ = cli.Shutdown(logger, 30*time.Second,
		cli.ShutdownStep{Name: "http", Fn: srv.Shutdown},
		cli.ShutdownStep{Name: "backend", Fn: func(context.Context) error { return res.Cleanup() }},
	)
}

// readiness pings the repository when it supports it.
func readiness(repo any) func(ctx context.Context) error {
	pinger, ok := repo.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return pinger.Ping
}

func refreshRates(ctx context.Context, logger *log.Logger, rates *fxrate.Provider, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := rates.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Exchange rate refresh failed, serving cached rate", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
