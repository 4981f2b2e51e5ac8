package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robalyx/sentinel/internal/classifier"
	"github.com/robalyx/sentinel/internal/conversation"
	"github.com/robalyx/sentinel/internal/database"
	"github.com/robalyx/sentinel/internal/export"
	"github.com/robalyx/sentinel/internal/metrics"
	"github.com/robalyx/sentinel/internal/moderation"
	"github.com/robalyx/sentinel/internal/ratelimit"
	"github.com/robalyx/sentinel/internal/redis"
	"github.com/robalyx/sentinel/internal/report"
	"github.com/robalyx/sentinel/internal/risk"
	"github.com/robalyx/sentinel/internal/scheduler"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/robalyx/sentinel/internal/setup/telemetry"
	"github.com/robalyx/sentinel/internal/storage"
	"github.com/robalyx/sentinel/internal/storage/sqlite"
	"go.uber.org/zap"
)

// SweepSchedule is how often idle windows and limiter entries are dropped.
const SweepSchedule = "@every 10m"

// ErrPendingMigrations is returned when the postgres schema is behind.
var ErrPendingMigrations = errors.New("database migrations are pending, run `db migrate up` first")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config       // Application configuration
	Logger       *zap.Logger          // Main application logger
	DBLogger     *zap.Logger          // Database-specific logger
	LogManager   *telemetry.Manager   // Log management system
	Registry     *prometheus.Registry // Metric registry served on /metrics
	Metrics      *metrics.Metrics     // Pipeline metrics
	RedisManager *redis.Manager       // Redis connection manager
	Stats        storage.Store        // User stats store, nil when disabled
	Classifier   *classifier.Adapter  // Grooming classifier
	Window       *conversation.Window // Per-user conversation windows
	Risks        *risk.Store          // In-memory risk profiles
	Queue        *moderation.Queue    // Moderation case queue
	Sessions     report.SessionStore  // Report dialog sessions
	Exporter     *export.Exporter     // File exports
	Limiter      *ratelimit.Limiter   // Event rate limiter
	Scheduler    *scheduler.Service   // Periodic jobs

	memorySessions *report.MemoryStore
	stopMetrics    context.CancelFunc
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
// Only the bot opens the stats store, restores the case mirror and runs jobs.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, &cfg.Common.Uptrace)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		LogManager:   logManager,
		Registry:     prometheus.NewRegistry(),
		RedisManager: redis.NewManager(&cfg.Common.Redis, logger),
		Risks:        risk.NewStore(logger, nil),
	}

	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(app.Registry)

	app.Exporter, err = export.New(cfg.Common.Export.Dir, logger, nil)
	if err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	if cfg.Common.Export.RestoreOnStartup || serviceType == telemetry.ServiceExport {
		app.restoreProfiles()
	}

	if serviceType != telemetry.ServiceBot {
		return app, nil
	}

	if err := app.initBot(ctx); err != nil {
		app.Cleanup(ctx)
		return nil, err
	}

	return app, nil
}

// initBot wires the live pipeline components.
func (a *App) initBot(ctx context.Context) error {
	cfg := a.Config

	stats, err := OpenStats(ctx, &cfg.Common, a.DBLogger)
	if err != nil {
		return err
	}

	a.Stats = stats

	a.Classifier = classifier.NewAdapter(
		classifier.NewHTTPBackend(classifier.HTTPConfig{
			BaseURL: cfg.Common.Classifier.BaseURL,
			APIKey:  cfg.Common.Classifier.APIKey,
			Timeout: millis(cfg.Common.Classifier.Timeout),
		}),
		classifier.Config{
			Timeout:          millis(cfg.Common.Classifier.Timeout),
			MaxConcurrent:    cfg.Common.Classifier.MaxConcurrent,
			BreakerTimeout:   millis(cfg.Common.Classifier.BreakerTimeout),
			BreakerMinCalls:  cfg.Common.Classifier.BreakerMinCalls,
			BreakerFailRatio: cfg.Common.Classifier.BreakerFailRatio,
		},
		a.Metrics,
		a.Logger,
	)

	a.Window = conversation.NewWindow(cfg.Bot.Window.MaxMessages, time.Duration(cfg.Bot.Window.TimeWindow)*time.Hour)
	a.Limiter = ratelimit.New(limiterConfig(&cfg.Bot.RateLimit), nil, a.Logger)

	if err := a.initQueueAndSessions(ctx); err != nil {
		return err
	}

	if cfg.Common.Metrics.Enabled {
		metricsCtx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel

		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Common.Metrics.Addr, a.Registry, a.Logger); err != nil {
				a.Logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	a.Scheduler = scheduler.New(a.Logger)
	if err := a.scheduleJobs(); err != nil {
		return err
	}

	a.Scheduler.Start()

	return nil
}

// initQueueAndSessions builds the case queue and session store, backed by Redis when enabled.
func (a *App) initQueueAndSessions(ctx context.Context) error {
	sessionTTL := report.SessionTTL
	if idle := a.Config.Bot.Moderation.SessionIdle; idle > 0 {
		sessionTTL = time.Duration(idle) * time.Minute
	}

	if !a.RedisManager.Enabled() {
		a.Queue = moderation.NewQueue(nil, a.Metrics, a.Logger)
		a.memorySessions = report.NewMemoryStore(sessionTTL)
		a.Sessions = a.memorySessions

		return nil
	}

	queueClient, err := a.RedisManager.GetClient(redis.QueueDBIndex)
	if err != nil {
		return err
	}

	sessionClient, err := a.RedisManager.GetClient(redis.SessionDBIndex)
	if err != nil {
		return err
	}

	mirror := moderation.NewRedisMirror(queueClient, a.Logger)
	a.Queue = moderation.NewQueue(mirror, a.Metrics, a.Logger)
	a.Sessions = report.NewRedisStore(sessionClient, sessionTTL)

	cases, err := mirror.Load(ctx)
	if err != nil {
		a.Logger.Warn("Failed to load mirrored cases", zap.Error(err))
		return nil
	}

	if restored := a.Queue.Restore(cases); restored > 0 {
		a.Logger.Info("Restored moderation cases", zap.Int("count", restored))
	}

	return nil
}

// scheduleJobs registers the snapshot and sweep jobs.
func (a *App) scheduleJobs() error {
	if spec := a.Config.Common.Export.SnapshotSchedule; spec != "" {
		if err := a.Scheduler.Add("profile_snapshot", spec, a.snapshot); err != nil {
			return err
		}
	}

	idle := time.Duration(a.Config.Bot.Window.IdleEviction) * time.Hour
	if idle <= 0 {
		idle = 24 * time.Hour
	}

	return a.Scheduler.Add("sweep", SweepSchedule, func() {
		windows := a.Window.Sweep(idle)
		limits := a.Limiter.Cleanup()

		a.Logger.Debug("Swept idle state",
			zap.Int("windows", windows),
			zap.Int("limiter_entries", limits))
	})
}

// snapshot writes the current profiles to a JSON snapshot.
func (a *App) snapshot() {
	path, err := a.Exporter.SaveProfiles(a.Risks.Profiles())
	if err != nil {
		a.Logger.Error("Failed to save profile snapshot", zap.Error(err))
		return
	}

	a.Logger.Info("Saved profile snapshot", zap.String("path", path))
}

// restoreProfiles loads the newest snapshot into the risk store.
func (a *App) restoreProfiles() {
	path, err := export.LatestSnapshot(a.Exporter.Dir())
	if err != nil {
		if !errors.Is(err, export.ErrNoSnapshot) {
			a.Logger.Warn("Failed to find profile snapshot", zap.Error(err))
		}
		return
	}

	profiles, err := export.LoadProfiles(path)
	if err != nil {
		a.Logger.Warn("Failed to load profile snapshot", zap.String("path", path), zap.Error(err))
		return
	}

	a.Risks.Restore(profiles)
	a.Logger.Info("Loaded profile snapshot", zap.String("path", path))
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (a *App) Cleanup(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop(ctx)
	}

	// Keep the latest profiles for the next start
	if a.Scheduler != nil && a.Exporter != nil && a.Risks.Len() > 0 {
		a.snapshot()
	}

	if a.stopMetrics != nil {
		a.stopMetrics()
	}

	if a.memorySessions != nil {
		a.memorySessions.Close()
	}

	if a.Stats != nil {
		if err := a.Stats.Close(); err != nil {
			a.Logger.Error("Failed to close stats store", zap.Error(err))
		}
	}

	// Close Redis connections after everything that might write to it
	a.RedisManager.Close()

	// Sync buffered logs before shutdown
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := a.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Flush traces last
	a.LogManager.Stop(ctx)
}

// openStats opens the configured stats store. An empty driver disables it.
func OpenStats(ctx context.Context, cfg *config.CommonConfig, dbLogger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "", "none":
		dbLogger.Warn("Stats storage disabled, automatic consequences will not be applied")
		return nil, nil //nolint:nilnil // disabled store
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.SQLitePath, dbLogger)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "postgres":
		client, err := checkMigrations(ctx, &cfg.PostgreSQL, dbLogger)
		if err != nil {
			return nil, err
		}

		return database.NewStore(client), nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownStore, cfg.Storage.Driver)
	}
}

// checkMigrations connects to postgres and refuses to continue while migrations are pending.
func checkMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	ms, err := database.NewMigrator(db.DB()).MigrationsWithStatus(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s", ErrPendingMigrations, unapplied.String())
	}

	return db, nil
}

// limiterConfig overlays configured limits on the defaults.
func limiterConfig(cfg *config.RateLimit) *ratelimit.Config {
	limits := ratelimit.DefaultConfig()

	if cfg.UserCooldown > 0 {
		cooldown := millis(cfg.UserCooldown)
		limits.PerUserCooldown[ratelimit.EventReportInput] = cooldown
		limits.PerUserCooldown[ratelimit.EventCommand] = cooldown
	}

	if cfg.GuildLimit > 0 {
		limits.PerGuildLimit[ratelimit.EventClassify] = cfg.GuildLimit
	}

	if cfg.GuildPeriod > 0 {
		limits.GuildResetPeriod = time.Duration(cfg.GuildPeriod) * time.Second
	}

	if cfg.GlobalLimit > 0 {
		limits.GlobalLimit[ratelimit.EventClassify] = cfg.GlobalLimit
	}

	if cfg.GlobalPeriod > 0 {
		limits.GlobalResetEvery = time.Duration(cfg.GlobalPeriod) * time.Second
	}

	return limits
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
