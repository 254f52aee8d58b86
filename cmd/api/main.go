package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-fieldroute/internal/config"
	"backend-fieldroute/internal/db"
	"backend-fieldroute/internal/events"
	"backend-fieldroute/internal/logger"
	"backend-fieldroute/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	setupLogger     func(logger.Options) error
	migrate         func(dir, databaseURL string) error
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	dialEvents      func(url string) (*events.Publisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *events.Publisher, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		setupLogger:     logger.Setup,
		migrate:         db.Migrate,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		dialEvents:      events.Dial,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	if err := deps.setupLogger(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, FilePath: cfg.LogFile}); err != nil {
		log.WithError(err).Warn("file logging disabled")
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.WithError(err).Error("postgres connection failed")
	}
	if pg != nil && cfg.MigrationsDir != "" {
		if err := deps.migrate(cfg.MigrationsDir, cfg.PostgresURL); err != nil {
			log.WithError(err).Error("database migration failed")
		}
	}

	rdb := deps.connectRedis(cfg)

	pub, err := deps.dialEvents(cfg.AMQPURL)
	if err != nil {
		log.WithError(err).Warn("event publishing disabled")
		pub = nil
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, pub, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. Open
// tracking sessions are flushed before the connections are closed.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, pub *events.Publisher, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb, pub)
	if err := srv.Start(); err != nil {
		log.WithError(err).Warn("report scheduler not started")
	}

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	var runErr error
	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("flushing tracking sessions failed")
	}
	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := pub.Close(); err != nil {
		log.WithError(err).Warn("closing event publisher failed")
	}
	return runErr
}
