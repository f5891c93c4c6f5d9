package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// @title Timetable API
// @version 1.0.0
// @description Greedy course timetable generation over faculty, classroom and cohort constraints.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// An untyped nil keeps the repository's nil-client check meaningful.
	var redisClient redis.Cmdable
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		redisClient = client
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "timetable:")

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr.Named("cache"), cfg.Cache.Enabled)
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	}, logr.Named("auth"))

	timetables := service.NewTimetableService(
		repository.NewCourseRepository(db),
		repository.NewFacultyRepository(db),
		repository.NewClassroomRepository(db),
		repository.NewTimetableRepository(db),
		db,
		cacheSvc,
		metrics,
		validator.New(),
		logr.Named("timetable"),
		service.TimetableServiceConfig{
			SlotHours:  cfg.Scheduler.SlotHours,
			RunTimeout: cfg.Scheduler.RunTimeout,
			CacheTTL:   cfg.Cache.TTL,
		},
	)

	queue := jobs.NewQueue("timetable", timetables.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Scheduler.AsyncWorkers,
		MaxRetries: cfg.Scheduler.AsyncRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr.Named("jobs"),
	})
	queue.Start(ctx)
	defer queue.Stop()
	timetables.AttachQueue(queue)

	checks := map[string]handler.Checker{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if cfg.Cache.Enabled {
		checks["redis"] = cacheRepo.Ping
	}
	system := handler.NewMetricsHandler(metrics, checks, func() string { return timetables.Phase().String() })
	timetableHandler := handler.NewTimetableHandler(timetables, logr.Named("http"))

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", system.Health)
	r.GET("/ready", system.Ready)
	r.GET("/metrics", system.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admins := internalmiddleware.RBAC(models.RoleAdmin)
	reviewers := internalmiddleware.RBAC(models.RoleAdmin, models.RoleFaculty)
	everyone := internalmiddleware.RBAC(models.RoleAdmin, models.RoleFaculty, models.RoleStudent)

	api := r.Group(cfg.APIPrefix, internalmiddleware.JWT(tokens))
	{
		group := api.Group("/timetables")
		group.GET("", everyone, timetableHandler.List)
		group.DELETE("", admins, timetableHandler.Clear)
		group.POST("/generate", admins, timetableHandler.Generate)
		group.GET("/groups", everyone, timetableHandler.Groups)
		group.GET("/conflicts", reviewers, timetableHandler.Conflicts)
		group.GET("/export", everyone, timetableHandler.Export)
		group.GET("/generations", admins, timetableHandler.Generations)
		group.GET("/jobs/:id", admins, timetableHandler.Job)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Synchronous generation may run up to the scheduler timeout.
		WriteTimeout: cfg.Scheduler.RunTimeout + 30*time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
