package server

import (
	"context"
	"errors"
	"time"

	"backend-fieldroute/internal/auth"
	"backend-fieldroute/internal/config"
	"backend-fieldroute/internal/db"
	"backend-fieldroute/internal/events"
	"backend-fieldroute/internal/gazetteer"
	"backend-fieldroute/internal/locations"
	"backend-fieldroute/internal/metrics"
	"backend-fieldroute/internal/report"
	"backend-fieldroute/internal/stops"
	"backend-fieldroute/internal/stream"
	"backend-fieldroute/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Tracking  *tracking.Manager
	Reports   *report.Service
	Scheduler *report.Scheduler
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, publisher *events.Publisher) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)
	store := tracking.NewPGStore(pool)

	manager := tracking.NewManager(store, tracking.NewFeedHub(),
		tracking.WithConfig(tracking.Config{
			PersistInterval: cfg.PersistInterval,
			StopRetries:     cfg.StopRetries,
		}),
		tracking.WithBroadcaster(hub),
		tracking.WithNotifier(publisher),
	)

	detector := stops.NewDetector(loadGazetteer(cfg.GazetteerFile))
	reports := report.NewService(store, detector, redisClient, cfg.Location())

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        pool,
		Redis:     redisClient,
		Stream:    hub,
		Tracking:  manager,
		Reports:   reports,
		Scheduler: report.NewScheduler(reports, store),
	}

	registerRoutes(s)
	return s
}

func loadGazetteer(path string) *gazetteer.Gazetteer {
	if path == "" {
		return gazetteer.Default()
	}
	g, err := gazetteer.Load(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("gazetteer file unusable, using built-in list")
		return gazetteer.Default()
	}
	log.WithFields(log.Fields{"path": path, "cities": g.Len()}).Info("gazetteer loaded")
	return g
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		deps := fiber.Map{
			"postgres": db.PostgresStatus(ctx, s.DB),
			"redis":    db.RedisStatus(ctx, s.Redis),
		}
		for _, st := range deps {
			if st == db.StatusDown {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "dependencies": deps})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "dependencies": deps})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Tracking, jwtMiddleware)
	locations.RegisterRoutes(s.App.Group("/locations"), locations.NewService(s.DB, s.Cfg.AdvisorRangeKm), locations.NewDrawings(), jwtMiddleware)
	report.RegisterRoutes(s.App.Group("/reports"), s.Reports, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Tracking.Store(), jwtMiddleware)
}

// Start launches background jobs.
func (s *Server) Start() error {
	return s.Scheduler.Start(s.Cfg.ReportCron)
}

// Close stops background jobs and flushes open tracking sessions. The HTTP
// app is shut down separately.
func (s *Server) Close(ctx context.Context) error {
	s.Scheduler.Stop()
	err := s.Tracking.Shutdown(ctx)
	return errors.Join(err, s.Stream.Close())
}
