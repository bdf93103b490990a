// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kewalaka/muffinbot/internal/bot"
	"github.com/kewalaka/muffinbot/internal/buildinfo"
	"github.com/kewalaka/muffinbot/internal/config"
	"github.com/kewalaka/muffinbot/internal/dialog"
	"github.com/kewalaka/muffinbot/internal/logger"
	"github.com/kewalaka/muffinbot/internal/maintenance"
	"github.com/kewalaka/muffinbot/internal/metrics"
	"github.com/kewalaka/muffinbot/internal/nlu"
	"github.com/kewalaka/muffinbot/internal/r2client"
	"github.com/kewalaka/muffinbot/internal/ratelimit"
	"github.com/kewalaka/muffinbot/internal/sentry"
	"github.com/kewalaka/muffinbot/internal/session"
	"github.com/kewalaka/muffinbot/internal/snapshot"
	"github.com/kewalaka/muffinbot/internal/storage"
	"github.com/kewalaka/muffinbot/internal/webhook"
)

const repositoryURL = "https://github.com/kewalaka/muffinbot"

// sessionStore is a session.Store that also supports retention and counting.
type sessionStore interface {
	session.Store
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int, error)
}

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg         *config.Config
	logger      *logger.Logger
	db          *storage.DB // nil with the memory session backend
	sessions    sessionStore
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	classifier  *nlu.Chain
	nluLimiter  *ratelimit.KeyedLimiter
	userLimiter *ratelimit.KeyedLimiter
	engine      *dialog.Engine
	webhook     *webhook.Handler  // nil when LINE is disabled
	emulator    *webhook.Emulator // nil unless the emulator endpoint is enabled
	snapshots   *snapshot.Manager // nil unless R2 snapshots are enabled
	router      *gin.Engine
	server      *http.Server
	wg          sync.WaitGroup // Background jobs
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", "muffinbot")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...", "version", buildinfo.Release(), "built", buildinfo.BuildDate)

	if cfg.SentryEnabled {
		if err := sentry.Initialize(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     buildinfo.Release(),
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			return nil, fmt.Errorf("sentry: %w", err)
		}
		log.Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	app := &Application{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		registry: registry,
	}

	if cfg.R2Enabled {
		mgr, err := newSnapshotManager(ctx, cfg, log, m)
		if err != nil {
			return nil, fmt.Errorf("snapshots: %w", err)
		}
		app.snapshots = mgr
		if restored, err := mgr.RestoreIfMissing(ctx, cfg.SQLitePath()); err != nil {
			log.WithError(err).Warn("Snapshot restore failed, starting with an empty session database")
		} else if restored {
			log.Info("Session database restored from R2")
		}
	}

	if err := app.openSessions(ctx); err != nil {
		return nil, err
	}

	app.nluLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "nlu",
		Burst:         cfg.Bot.NLUBurstTokens,
		RefillRate:    cfg.Bot.NLURefillPerHour / 3600.0,
		DailyLimit:    cfg.Bot.NLUDailyLimit,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	app.userLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "conversation",
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	settings := nlu.SettingsFromConfig(cfg)
	classifier, err := nlu.NewClassifier(ctx, settings, nlu.WithQuota(app.nluLimiter), nlu.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	app.classifier = classifier
	log.WithField("providers", classifier.Providers()).Info("Intent classifier ready")

	dispatchOpts := []dialog.DispatcherOption{
		dialog.WithThreshold(cfg.NLUConfidenceThreshold),
		dialog.WithDispatcherMetrics(m),
	}
	if corrector := nlu.NewCorrector(ctx, settings, m); corrector != nil {
		dispatchOpts = append(dispatchOpts, dialog.WithCorrector(corrector))
		log.Info("Spell correction enabled")
	}
	dispatcher := dialog.NewDispatcher(classifier,
		dialog.NewDefaultRegistry(dialog.NewCheckInResolver(cfg.Location())),
		dispatchOpts...)

	app.engine, err = dialog.NewEngine(dialog.EngineConfig{
		Store:         app.sessions,
		Dispatcher:    dispatcher,
		Logger:        log,
		Metrics:       m,
		MaxInputRunes: cfg.Bot.MaxInputRunes,
	})
	if err != nil {
		return nil, fmt.Errorf("dialog: %w", err)
	}

	if cfg.LineEnabled {
		client, err := webhook.NewLINEClient(cfg.LineChannelToken)
		if err != nil {
			return nil, fmt.Errorf("line client: %w", err)
		}
		processor := bot.NewProcessor(bot.ProcessorConfig{
			Conversation: app.engine,
			UserLimiter:  app.userLimiter,
			Logger:       log,
			Metrics:      m,
			BotConfig:    &cfg.Bot,
			BotName:      cfg.BotName,
			BotIconURL:   cfg.BotIconURL,
		})
		app.webhook, err = webhook.NewHandler(webhook.HandlerConfig{
			ChannelSecret: cfg.LineChannelSecret,
			Client:        client,
			Processor:     processor,
			BotConfig:     &cfg.Bot,
			Metrics:       m,
			Logger:        log,
		})
		if err != nil {
			return nil, fmt.Errorf("webhook: %w", err)
		}
	}
	if cfg.EmulatorEnabled {
		app.emulator = webhook.NewEmulator(app.engine, log, m, cfg.Bot.WebhookTimeout)
		log.Warn("Emulator endpoint enabled at /api/messages; do not expose it publicly")
	}

	app.router = app.newRouter()
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router,
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func newSnapshotManager(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*snapshot.Manager, error) {
	client, err := r2client.New(ctx, r2client.Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		Bucket:          cfg.R2BucketName,
	})
	if err != nil {
		return nil, err
	}
	ledger, err := maintenance.NewLedger(client, cfg.R2ScheduleKey, 30*time.Second)
	if err != nil {
		return nil, err
	}
	lease := r2client.NewLease(client, cfg.R2LockKey, cfg.R2LockTTL)

	return snapshot.New(client, lease, snapshot.Config{
		Key:      cfg.R2SnapshotKey,
		TempDir:  cfg.DataDir,
		Interval: cfg.R2SnapshotInterval,
	}, log, m, snapshot.WithSchedule(ledger)), nil
}

// openSessions opens the configured session backend.
func (a *Application) openSessions(ctx context.Context) error {
	switch a.cfg.SessionBackend {
	case config.SessionBackendMemory:
		a.sessions = session.NewMemoryStore()
		a.logger.Warn("Using in-memory sessions; conversations reset on restart")
	default:
		db, err := storage.New(ctx, a.cfg.SQLitePath())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.db = db
		a.sessions = storage.NewSessionStore(db)
		a.logger.WithField("path", a.cfg.SQLitePath()).Info("Session database connected")
	}
	return nil
}

func (a *Application) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentry.Middleware())
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.redirectToRepository)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	if a.webhook != nil {
		router.POST("/webhook", a.webhook.Handle)
	}
	if a.emulator != nil {
		router.POST("/api/messages", a.emulator.Handle)
	}
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsAuthEnabled, a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	return router
}

func (a *Application) redirectToRepository(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, repositoryURL)
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (a *Application) features() map[string]bool {
	return map[string]bool{
		"line":            a.webhook != nil,
		"emulator":        a.emulator != nil,
		"llm_classifier":  a.cfg != nil && a.cfg.HasLLMProvider(),
		"snapshots":       a.snapshots != nil,
		"persistent_data": a.db != nil,
	}
}

func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if a.db != nil {
		if err := a.db.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Readiness check failed: database unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "database unavailable",
			})
			return
		}
	}

	count, err := a.sessions.Count(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: session store unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "session store unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": count,
		"features": a.features(),
	})
}

// Run starts the HTTP server and background jobs and blocks until SIGINT or
// SIGTERM. Background jobs are stopped and awaited before resources close so
// no job touches a closed database.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	errCh := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.sessionCleanup(ctx)
	})
	a.wg.Go(func() {
		a.updateGauges(ctx)
	})
	if a.snapshots != nil && a.db != nil {
		a.wg.Go(func() {
			a.snapshots.Run(ctx, a.db)
		})
	}
}

func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server, drains webhook batches and then closes
// resources. Call it only after background jobs have returned.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.webhook != nil {
		a.logger.Info("Waiting for webhook events to complete...")
		if err := a.webhook.Shutdown(shutdownCtx); err != nil {
			a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
		}
	}

	a.logger.Info("Closing resources...")
	if err := a.classifier.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "classifier").Error("Component close error")
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		}
	}
	a.nluLimiter.Stop()
	a.userLimiter.Stop()

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}
