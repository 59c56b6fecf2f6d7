package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-player/internal/apiclient"
	"github.com/SAP-F-2025/course-player/internal/cache"
	"github.com/SAP-F-2025/course-player/internal/config"
	"github.com/SAP-F-2025/course-player/internal/handlers"
	"github.com/SAP-F-2025/course-player/internal/quizsession"
	"github.com/SAP-F-2025/course-player/internal/repositories"
	"github.com/SAP-F-2025/course-player/internal/repositories/memory"
	"github.com/SAP-F-2025/course-player/internal/repositories/postgres"
	"github.com/SAP-F-2025/course-player/internal/services"
	"github.com/SAP-F-2025/course-player/internal/utils"
	"github.com/SAP-F-2025/course-player/internal/validator"
	"github.com/SAP-F-2025/course-player/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogger := utils.NewLogger(cfg.Environment)
	logger := utils.NewSlogLogger(slogger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Storage: postgres when configured, process memory otherwise
	var (
		outbox     repositories.ProgressOutboxRepository
		proctoring repositories.ProctoringEventRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		if err := postgres.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		outbox = postgres.NewProgressOutboxPostgreSQL(db)
		proctoring = postgres.NewProctoringEventPostgreSQL(db)
		logger.Info("Using postgres storage")
	} else {
		outbox = memory.NewProgressOutbox()
		proctoring = memory.NewProctoringEvents()
		logger.Warn("DATABASE_URL not set, pending progress and proctoring events are kept in memory")
	}

	cacheService := cache.NewNoopCache()
	if cfg.RedisURL != "" {
		redisClient, err := pkg.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()

		zapLogger, err := utils.NewZapLogger(cfg.Environment)
		if err != nil {
			log.Fatalf("zap: %v", err)
		}
		defer zapLogger.Sync()
		cacheService = cache.NewRedisCache(redisClient, zapLogger)
		logger.Info("Using redis cache", "ttl", cfg.CacheTTL)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		log.Fatalf("event publisher: %v", err)
	}
	defer publisher.Close()

	client := apiclient.NewClient(apiclient.Config{
		BaseURL: cfg.LMSAPIURL,
		Timeout: cfg.APITimeout,
	})
	v := validator.New()

	learners := services.NewLearnerService(services.NewAPIAuthenticator(client), cacheService, cfg.CacheTTL, slogger, v)
	player := services.NewPlayerService(learners, outbox, publisher, slogger)
	quizzes := services.NewQuizService(learners, player, proctoring, publisher, quizsession.Config{
		MaxViolations:  cfg.QuizMaxViolations,
		TickInterval:   cfg.QuizTickInterval,
		AutoRetryDelay: cfg.QuizAutoRetryDelay,
		SubmitTimeout:  cfg.APITimeout,
	}, slogger, v)
	reports := services.NewReportService(learners, player, slogger)

	hm := handlers.NewHandlerManager(handlers.Services{
		Learners: learners,
		Player:   player,
		Quizzes:  quizzes,
		Reports:  reports,
	}, logger)
	router := handlers.NewRouter(hm, logger, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Course player listening", "port", cfg.Port, "lms", cfg.LMSAPIURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// Stops quiz timers and logs every learner out of the LMS.
	learners.Shutdown(ctx)
}
