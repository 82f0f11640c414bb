// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/adapters/clock"
	apihttp "github.com/ryoda0314/tutoring-app-sub000/adapters/http"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/idgen"
	"github.com/ryoda0314/tutoring-app-sub000/adapters/metrics"
	"github.com/ryoda0314/tutoring-app-sub000/app"
	"github.com/ryoda0314/tutoring-app-sub000/config"
	"github.com/ryoda0314/tutoring-app-sub000/domain/period"
	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// Options controls application initialization.
type Options struct {
	// ConfigPath is the YAML file to load. When it does not exist the
	// configuration comes from TUTORBILL_* environment variables and hot
	// reload is disabled.
	ConfigPath string

	// Registry receives the metrics instead of the default registerer.
	Registry *prometheus.Registry

	// LogOutput defaults to stdout.
	LogOutput io.Writer

	// HotReload watches the config file and SIGHUP while Run is active.
	HotReload bool
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder // nil when configured from the environment
	Stores     *Stores
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	// Services
	Billing  *app.BillingService
	Ledger   *app.LedgerService
	Lessons  *app.LessonService
	Payments *app.PaymentService
	Charges  *app.ChargeService

	locker    LockCloser
	location  *time.Location
	hotReload bool
}

// New creates and initializes the application.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, holder, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := setupLogger(cfg.Logging, out)
	if holder != nil {
		holder.SetLogger(logger.With().Str("component", "config").Logger())
	}

	logger.Info().
		Str("database", cfg.Database.Driver).
		Str("locking", cfg.Locking.Mode).
		Msg("initializing tutorbill")

	pc, err := cfg.PeriodConfig()
	if err != nil {
		return nil, fmt.Errorf("billing config: %w", err)
	}

	a := &App{
		Logger:    logger,
		Config:    cfg,
		Holder:    holder,
		location:  pc.Location,
		hotReload: opts.HotReload,
	}

	stores, err := OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Stores = stores

	locker, err := OpenLocker(ctx, cfg.Locking, logger)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("init locker: %w", err)
	}
	a.locker = locker

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.buildServices(pc, locker)
	a.initHTTPServer(opts.Registry)

	if holder != nil {
		holder.OnChange(a.applyConfig)
		holder.ObserveReloads(a.Metrics.ConfigReloaded)
	}

	return a, nil
}

func loadConfig(path string) (*config.Config, *config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			h, err := config.NewHolder(path, zerolog.Nop())
			if err != nil {
				return nil, nil, err
			}
			return h.Get(), h, nil
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil, nil
}

func (a *App) buildServices(pc period.Config, locker ports.Locker) {
	clk := clock.InLocation(pc.Location)
	var m ports.LedgerMetrics
	if a.Metrics != nil {
		m = a.Metrics
	}

	a.Billing = app.NewBillingService(app.BillingDeps{
		Lessons:  a.Stores.Lessons,
		Charges:  a.Stores.Charges,
		Payments: a.Stores.Payments,
		Clock:    clk,
		Metrics:  m,
		Logger:   a.Logger.With().Str("service", "billing").Logger(),
	}, pc)

	a.Ledger = app.NewLedgerService(app.LedgerDeps{
		Credits: a.Stores.Credits,
		Locker:  locker,
		Clock:   clk,
		IDGen:   idgen.ForKind(idgen.PrefixCredit),
		Metrics: m,
		Logger:  a.Logger.With().Str("service", "ledger").Logger(),
	}, pc)

	a.Lessons = app.NewLessonService(app.LessonDeps{
		Lessons: a.Stores.Lessons,
		Ledger:  a.Ledger,
		Clock:   clk,
		IDGen:   idgen.ForKind(idgen.PrefixLesson),
		Logger:  a.Logger.With().Str("service", "lessons").Logger(),
	})

	a.Payments = app.NewPaymentService(app.PaymentDeps{
		Payments: a.Stores.Payments,
		Billing:  a.Billing,
		Locker:   locker,
		Clock:    clk,
		IDGen:    idgen.ForKind(idgen.PrefixPayment),
		Metrics:  m,
		Logger:   a.Logger.With().Str("service", "payments").Logger(),
	})

	a.Charges = app.NewChargeService(
		a.Stores.Charges,
		clk,
		idgen.ForKind(idgen.PrefixCharge),
		a.Logger.With().Str("service", "charges").Logger(),
	)
}

func (a *App) initHTTPServer(reg *prometheus.Registry) {
	handler := apihttp.NewHandler(apihttp.Deps{
		Billing:  a.Billing,
		Ledger:   a.Ledger,
		Lessons:  a.Lessons,
		Payments: a.Payments,
		Charges:  a.Charges,
		Logger:   a.Logger,
	})

	health := apihttp.NewHealthHandler(map[string]apihttp.HealthChecker{
		"database": a.Stores,
	})

	rc := apihttp.RouterConfig{
		Metrics:        a.Metrics,
		MetricsPath:    a.Config.Metrics.Path,
		RequestTimeout: a.Config.Server.RequestTimeout,
	}
	if a.Metrics != nil && reg != nil {
		rc.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	a.HTTPServer = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      apihttp.NewRouter(handler, health, a.Logger, rc),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// applyConfig pushes reloadable settings into the running services.
// The time zone is fixed for the life of the process.
func (a *App) applyConfig(cfg *config.Config) {
	pc, err := cfg.PeriodConfig()
	if err != nil {
		a.Logger.Error().Err(err).Msg("ignoring reloaded billing config")
		return
	}
	pc.Location = a.location

	a.Billing.SetPeriodConfig(pc)
	a.Ledger.SetPeriodConfig(pc)

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if a.Holder != nil && a.hotReload {
		if err := a.Holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Holder.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("http server failed")
		a.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.locker != nil {
		if err := a.locker.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("locker close error")
		}
	}

	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Migrate opens the configured database and applies pending migrations.
func Migrate(ctx context.Context, cfg *config.Config) error {
	stores, err := OpenStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	return stores.Close()
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
