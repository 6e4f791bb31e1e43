package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/parokia/catechesis-api/api/swagger"
	"github.com/parokia/catechesis-api/internal/handler"
	"github.com/parokia/catechesis-api/internal/middleware"
	"github.com/parokia/catechesis-api/internal/models"
	"github.com/parokia/catechesis-api/internal/repository"
	"github.com/parokia/catechesis-api/internal/service"
	"github.com/parokia/catechesis-api/internal/sheets"
	"github.com/parokia/catechesis-api/pkg/cache"
	"github.com/parokia/catechesis-api/pkg/config"
	"github.com/parokia/catechesis-api/pkg/database"
	"github.com/parokia/catechesis-api/pkg/jobs"
	"github.com/parokia/catechesis-api/pkg/logger"
	corsmiddleware "github.com/parokia/catechesis-api/pkg/middleware/cors"
	reqidmiddleware "github.com/parokia/catechesis-api/pkg/middleware/requestid"
	"github.com/parokia/catechesis-api/pkg/storage"
)

// @title Catechesis Register API
// @version 1.0.0
// @description Attendance and chapter evaluation record keeping with a spreadsheet mirror
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reconciliation.CacheTTL, logr, true)
	}

	attendanceRepo := repository.NewAttendanceRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	absenceRepo := repository.NewAbsenceRequestRepository(db)
	userRepo := repository.NewUserRepository(db)

	workbook := sheets.NewWorkbook(cfg.Sheets.WorkbookPath, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	var submissionSvc *service.SubmissionService
	retryQueue := jobs.NewQueue("sheet-sync", func(ctx context.Context, job jobs.Job) error {
		return submissionSvc.RetrySync(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Sheets.RetryWorkers,
		MaxRetries: cfg.Sheets.RetryMax,
		RetryDelay: cfg.Sheets.RetryDelay,
		Logger:     logr,
	})

	submissionSvc = service.NewSubmissionService(attendanceRepo, evaluationRepo, workbook, retryQueue, validate, metricsSvc, cacheSvc, logr, service.SubmissionServiceConfig{
		AttendanceSheet: cfg.Sheets.AttendanceSheet,
		EvaluationSheet: cfg.Sheets.EvaluationSheet,
	})

	reconciliationSvc := service.NewReconciliationService(lessonRepo, attendanceRepo, evaluationRepo, cacheSvc, metricsSvc, logr, service.ReconciliationServiceConfig{
		Concurrency: cfg.Reconciliation.Concurrency,
		CacheTTL:    cfg.Reconciliation.CacheTTL,
	})
	alertSvc := service.NewAlertService(service.AlertThresholds{
		AttendanceHighMissing: cfg.Alerts.AttendanceHighMissing,
		EvaluationHighMissing: cfg.Alerts.EvaluationHighMissing,
	})
	archive, err := storage.NewArchive(cfg.Exports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export archive", "error", err)
	}
	signer := storage.NewDownloadSigner(cfg.JWT.Secret, cfg.Exports.URLTTL)
	reportSvc := service.NewReportService(archive, signer, logr)
	rosterSvc := service.NewRosterService(teacherRepo, lessonRepo, evaluationRepo, validate, logr)
	absenceSvc := service.NewAbsenceService(absenceRepo, attendanceRepo, cacheSvc, logr)

	queueCtx, stopQueue := context.WithCancel(context.Background())
	retryQueue.Start(queueCtx)

	// Expired exports outlive their download tokens; sweep them on the same TTL.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-queueCtx.Done():
				return
			case <-ticker.C:
				if swept, err := archive.Sweep(cfg.Exports.URLTTL); err != nil {
					logr.Sugar().Warnw("export sweep failed", "error", err)
				} else if len(swept) > 0 {
					logr.Sugar().Infow("swept expired exports", "count", len(swept))
				}
			}
		}
	}()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(submissionSvc)
	evaluationHandler := handler.NewEvaluationHandler(submissionSvc)
	absenceHandler := handler.NewAbsenceHandler(absenceSvc)
	reconciliationHandler := handler.NewReconciliationHandler(rosterSvc, reconciliationSvc, alertSvc, reportSvc)
	teacherHandler := handler.NewTeacherHandler(rosterSvc)
	lessonHandler := handler.NewLessonHandler(rosterSvc)

	api := r.Group(cfg.APIPrefix)

	// Download tokens are themselves signed, so the route is public.
	api.GET("/exports/:token", reconciliationHandler.Download)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.POST("/attendance", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), attendanceHandler.Submit)
	protected.GET("/attendance", attendanceHandler.List)
	protected.POST("/evaluations", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), evaluationHandler.Submit)
	protected.GET("/evaluations", evaluationHandler.List)

	protected.GET("/absence-requests", absenceHandler.List)
	protected.POST("/absence-requests/:id/approve", middleware.RequireRoles(models.RoleAdmin), absenceHandler.Approve)
	protected.POST("/absence-requests/:id/reject", middleware.RequireRoles(models.RoleAdmin), absenceHandler.Reject)

	protected.GET("/reconciliation/completion", middleware.RequireRoles(models.RoleAdmin), reconciliationHandler.Completion)
	protected.GET("/reconciliation/alerts", middleware.RequireRoles(models.RoleAdmin), reconciliationHandler.Alerts)
	protected.GET("/reconciliation/completion/export", middleware.RequireRoles(models.RoleAdmin), reconciliationHandler.Export)

	protected.GET("/teachers", teacherHandler.List)
	protected.GET("/teachers/:id", teacherHandler.Get)
	protected.POST("/lessons", middleware.RequireRoles(models.RoleAdmin), lessonHandler.Create)
	protected.GET("/lessons", lessonHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	stopQueue()
	retryQueue.Stop()
}
