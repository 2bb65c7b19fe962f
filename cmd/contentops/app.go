package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"contentops/internal/api"
	"contentops/internal/config"
	"contentops/internal/database"
	"contentops/internal/domain"
	"contentops/internal/events"
	"contentops/internal/google"
	"contentops/internal/logging"
	"contentops/internal/metrics"
	"contentops/internal/repository"
	"contentops/internal/service"
	"contentops/internal/sheets"
	"contentops/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger

	client    *api.Client
	store     sheets.Store
	journal   *database.DB
	redis     *redis.Client
	bus       *events.EventBus
	locks     *sheets.KeyedMutex
	accounts  *service.AccountDirectory
	syncer    *service.Synchronizer
	scheduler *service.Scheduler

	closers []io.Closer
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logging.Component(baseLogger, "cli"), closer, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, locks: sheets.NewKeyedMutex()}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	metrics.Register()

	if cfg.API.BaseURL != "" {
		a.client = api.NewClient(cfg.API, nil, logging.Component(logger, "api"))
	}

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	journal, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "journal"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open intent journal")
		a.Close()
		return nil, err
	}
	a.journal = journal
	a.closers = append(a.closers, journal)

	a.bus = events.NewEventBus(logging.Component(logger, "events"))
	events.NewProgressLog(logging.Component(logger, "progress")).Attach(a.bus)
	if err := a.initTelegram(); err != nil {
		logger.Warn().Err(err).Msg("Telegram notifications disabled")
	}

	a.accounts = service.NewAccountDirectory(a.store, cfg.Sync.ConfigTTL, logging.Component(logger, "accounts"))
	a.syncer = service.NewSynchronizer(a.store, a.accounts, a.locks, logging.Component(logger, "syncer"))
	a.scheduler = service.NewScheduler(a.store, a.locks, a.syncer, a.journal, a.bus, logging.Component(logger, "scheduler"))
	return a, nil
}

func (a *app) initStore(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendGoogle:
		svc, err := google.NewSheetsService(ctx, a.cfg.Google, logging.Component(a.logger, "google"))
		if err != nil {
			a.logger.Error().Err(err).Msg("Failed to initialize Google Sheets service")
			return err
		}
		if err := svc.TestConnection(ctx); err != nil {
			logConnectionFailure(a.logger, a.cfg.Google.CredentialsFile, err)
			return err
		}
		a.logger.Info().Msg("Google Sheets service initialized successfully")
		a.store = svc
	default:
		a.store = a.client
	}
	return nil
}

// logConnectionFailure names the service account the spreadsheet must be
// shared with when the key file can be read.
func logConnectionFailure(logger *zerolog.Logger, credentialsFile string, err error) {
	ev := logger.Error().Err(err)
	if email, emailErr := google.ServiceAccountEmail(credentialsFile); emailErr == nil && email != "" {
		ev = ev.Str("share_with", email)
	}
	ev.Msg("Google Sheets connection test failed")
}

func (a *app) initTelegram() error {
	bot, err := service.NewTelegramBot(a.cfg.Telegram.BotToken, a.cfg.Telegram.Debug)
	if err != nil {
		return err
	}
	if bot == nil {
		return nil
	}
	service.NewTelegramNotifier(bot, a.cfg.Telegram.ChatID, logging.Component(a.logger, "telegram")).Attach(a.bus)
	return nil
}

// tasks returns the server's task API; the google backend still needs it for
// uploads, publishing and polling.
func (a *app) tasks() (*api.Client, error) {
	if a.client == nil {
		return nil, errors.New("api.base_url is required for task commands")
	}
	return a.client, nil
}

func (a *app) newPoller(ctx context.Context) (*worker.Poller, error) {
	client, err := a.tasks()
	if err != nil {
		return nil, err
	}
	return worker.NewPoller(client, a.newTracker(ctx), a.bus, a.cfg.Poller, logging.Component(a.logger, "poller")), nil
}

func (a *app) newTracker(ctx context.Context) domain.TaskTracker {
	if a.cfg.Redis.Address != "" && a.redis == nil {
		a.redis = repository.NewRedisClient(a.cfg.Redis)
		if errPing := repository.Ping(ctx, a.redis); errPing != nil {
			a.logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
		a.closers = append(a.closers, closerFunc(func() error { return repository.Close(a.redis) }))
	}
	return newTaskTracker(a.cfg.Redis, a.redis, a.journal, logging.Component(a.logger, "tracker"))
}

// newTaskTracker keeps the tracked id in redis with the journal as the
// on-disk fallback, or in the journal alone when redis is not configured.
func newTaskTracker(cfg config.RedisConfig, client *redis.Client, journal *database.DB, logger *zerolog.Logger) domain.TaskTracker {
	if client == nil {
		return journal
	}
	primary := repository.NewRedisTaskTracker(client, cfg.Key, cfg.TTL)
	return repository.NewFailoverTaskTracker(primary, journal, logger)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
