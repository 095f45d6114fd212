package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamata/fitness-core/internal/api"
	"gamata/fitness-core/internal/cache"
	"gamata/fitness-core/internal/config"
	"gamata/fitness-core/internal/lock"
	"gamata/fitness-core/internal/repository"
	"gamata/fitness-core/internal/repository/mongo"
	"gamata/fitness-core/internal/repository/sqlite"
	"gamata/fitness-core/internal/service"

	"github.com/gin-gonic/gin"
)

// stores bundles the repositories of whichever driver is configured.
type stores struct {
	workouts    repository.WorkoutRepository
	plans       repository.PlanRepository
	assignments repository.AssignmentRepository
	sessions    repository.SessionRepository
	health      func(ctx context.Context) error
	close       func()
}

// @title Coached Fitness API
// @version 1.0
// @description Plan assignment, daily schedule, workout sessions and progress stats.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("could not load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("starting fitness core server", "driver", cfg.Database.Driver, "address", cfg.Server.Address)

	// --- Storage ---
	st, err := openStores(cfg.Database)
	if err != nil {
		logger.Error("could not open store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// --- Locks and cache ---
	var locker lock.Locker = lock.NewLocalLocker()
	var catalogCache *cache.RedisCache
	if cfg.Redis.URL != "" {
		catalogCache, err = cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			logger.Error("could not connect to redis", "error", err)
			os.Exit(1)
		}
		defer catalogCache.Close()
		locker = lock.NewRedisLocker(catalogCache.Client(), cfg.Redis.LockTTL)
		logger.Info("redis locks and catalog cache enabled")
	}

	// --- Services ---
	now := service.SystemClock
	catalog := service.NewCatalogService(st.workouts, catalogCache, cfg.Redis.CacheTTL)
	services := api.Services{
		Catalog:     catalog,
		Plans:       service.NewPlanService(st.plans, st.assignments, catalog, now, logger),
		Assignments: service.NewAssignmentService(st.assignments, st.plans, locker, now, logger),
		Schedule:    service.NewScheduleService(st.assignments, st.plans, catalog),
		Sessions:    service.NewSessionService(st.sessions, st.assignments, st.plans, catalog, locker, now, logger),
		Stats:       service.NewStatsService(st.sessions, st.assignments, st.plans, catalog, now),
		Now:         now,
		Health:      st.health,
	}

	// --- Router ---
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	api.SetupRoutes(router, api.RouteOptions{
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		MetricsEnabled: cfg.Metrics.Enabled,
	}, services)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exiting")
}

func openStores(cfg config.DatabaseConfig) (*stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Init(); err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			workouts:    sqlite.NewWorkoutRepository(db),
			plans:       sqlite.NewPlanRepository(db),
			assignments: sqlite.NewAssignmentRepository(db),
			sessions:    sqlite.NewSessionRepository(db),
			health:      db.Health,
			close:       func() { db.Close() },
		}, nil
	default:
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return nil, err
		}
		appDB := client.Database(cfg.Name)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
			_ = mongo.DisconnectDB(client)
			return nil, err
		}
		return &stores{
			workouts:    mongo.NewMongoWorkoutRepository(appDB),
			plans:       mongo.NewMongoPlanRepository(appDB),
			assignments: mongo.NewMongoAssignmentRepository(appDB),
			sessions:    mongo.NewMongoSessionRepository(appDB),
			health: func(ctx context.Context) error {
				return mongo.PingDB(ctx, client)
			},
			close: func() {
				if err := mongo.DisconnectDB(client); err != nil {
					slog.Error("failed to disconnect mongo", "error", err)
				}
			},
		}, nil
	}
}
