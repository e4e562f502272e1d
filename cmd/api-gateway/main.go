package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campos-hq/campos-api/api/swagger"
	"github.com/campos-hq/campos-api/internal/handler"
	"github.com/campos-hq/campos-api/internal/middleware"
	"github.com/campos-hq/campos-api/internal/models"
	"github.com/campos-hq/campos-api/internal/repository"
	"github.com/campos-hq/campos-api/internal/service"
	"github.com/campos-hq/campos-api/pkg/cache"
	"github.com/campos-hq/campos-api/pkg/config"
	"github.com/campos-hq/campos-api/pkg/database"
	"github.com/campos-hq/campos-api/pkg/logger"
	corsmiddleware "github.com/campos-hq/campos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campos-hq/campos-api/pkg/middleware/requestid"
	"github.com/campos-hq/campos-api/pkg/storage"
)

// @title Camp OS API
// @version 1.0.0
// @description Multi-tenant camp management backend
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
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	camperRepo := repository.NewCamperRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	medicalRepo := repository.NewMedicalRepository(db)
	formRepo := repository.NewFormRepository(db)
	snapshotRepo := repository.NewFormSnapshotRepository(db)
	submissionRepo := repository.NewFormSubmissionRepository(db)
	aiActionRepo := repository.NewAIActionRepository(db)
	eventRepo := repository.NewEventRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	notificationSvc := service.NewNotificationService(logr, cfg.Notifications.WorkerConcurrency, cfg.Notifications.WorkerRetries)
	if cfg.Notifications.Enabled {
		notificationSvc.Start(context.Background())
		defer notificationSvc.Stop()
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
		Issuer:        "campos-api",
	})

	formSvc := service.NewFormService(formRepo, snapshotRepo, eventRepo, db, logr,
		service.WithFormCache(cacheRepo),
		service.WithMaxFieldsPerForm(cfg.Forms.MaxFieldsPerForm),
	)
	submissionSvc := service.NewSubmissionService(submissionRepo, formRepo, snapshotRepo, eventRepo, db, logr,
		service.WithSubmissionMetrics(metricsSvc),
		service.WithSnapshotCache(cacheRepo, cfg.Forms.SnapshotCacheTTL),
	)
	aiActionSvc := service.NewAIActionService(aiActionRepo, formRepo, eventRepo, db, logr)
	sessionSvc := service.NewSessionService(sessionRepo, logr)

	registrationOpts := []service.RegistrationServiceOption{}
	medicalOpts := []service.MedicalServiceOption{}
	if cfg.Notifications.Enabled {
		registrationOpts = append(registrationOpts, service.WithRegistrationNotifier(notificationSvc))
		medicalOpts = append(medicalOpts, service.WithIncidentNotifier(notificationSvc))
	}
	registrationSvc := service.NewRegistrationService(camperRepo, sessionRepo, eventRepo, db, logr, registrationOpts...)
	medicalSvc := service.NewMedicalService(medicalRepo, eventRepo, db, logr, medicalOpts...)
	rosterSvc := service.NewRosterService(groupRepo, exportStore, exportSigner, logr)
	if cfg.Exports.Enabled {
		rosterSvc.StartRetentionSweep(cfg.Exports.RetentionTTL, time.Hour)
		defer rosterSvc.StopRetentionSweep()
	}
	dashboardSvc := service.NewDashboardService(dashboardRepo, logr,
		service.WithDashboardCache(cacheRepo, cfg.Dashboard.CacheTTL),
	)
	auditSvc := service.NewAuditService(eventRepo)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	formHandler := handler.NewFormHandler(formSvc, metricsSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, metricsSvc)
	aiActionHandler := handler.NewAIActionHandler(aiActionSvc, metricsSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc)
	medicalHandler := handler.NewMedicalHandler(medicalSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Signed-URL downloads authenticate through the token itself.
	if cfg.Exports.Enabled {
		api.GET("/exports/download", rosterHandler.Download)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staffUp := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	nurseUp := middleware.RequireRoles(models.RoleAdmin, models.RoleNurse)
	parentUp := middleware.RequireRoles(models.RoleAdmin, models.RoleParent)

	camps := protected.Group("/camps")
	{
		camps.POST("", adminOnly, sessionHandler.CreateCamp)
		camps.GET("/:id", sessionHandler.GetCamp)
	}

	sessions := protected.Group("/sessions")
	{
		sessions.POST("", adminOnly, sessionHandler.Create)
		sessions.GET("", sessionHandler.List)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.PUT("/:id", adminOnly, sessionHandler.Update)
		sessions.PUT("/:id/status", adminOnly, sessionHandler.Transition)
	}

	if cfg.Forms.Enabled {
		forms := protected.Group("/forms")
		{
			forms.POST("", adminOnly, formHandler.Create)
			forms.GET("", formHandler.List)
			forms.GET("/:id", formHandler.Get)
			forms.PUT("/:id", adminOnly, formHandler.Update)
			forms.DELETE("/:id", adminOnly, formHandler.Archive)
			forms.POST("/:id/publish", adminOnly, formHandler.Publish)
			forms.GET("/:id/snapshots", adminOnly, formHandler.Snapshots)
			forms.POST("/:id/submissions", submissionHandler.Submit)
		}

		submissions := protected.Group("/submissions")
		{
			submissions.GET("", staffUp, submissionHandler.List)
			submissions.GET("/:id", staffUp, submissionHandler.Get)
		}

		aiActions := protected.Group("/ai/actions", adminOnly)
		{
			aiActions.POST("", aiActionHandler.Propose)
			aiActions.GET("", aiActionHandler.List)
			aiActions.GET("/:id", aiActionHandler.Get)
			aiActions.POST("/:id/review", aiActionHandler.Review)
			aiActions.POST("/:id/execute", aiActionHandler.Execute)
		}
	}

	if cfg.Registrations.Enabled {
		campers := protected.Group("/campers", parentUp)
		{
			campers.POST("", registrationHandler.CreateCamper)
			campers.GET("", registrationHandler.ListCampers)
			campers.PUT("/:id", registrationHandler.UpdateCamper)
		}

		registrations := protected.Group("/registrations", parentUp)
		{
			registrations.POST("", registrationHandler.Register)
			registrations.GET("", registrationHandler.List)
			registrations.DELETE("/:id", registrationHandler.Cancel)
		}
	}

	if cfg.Medical.Enabled {
		medical := protected.Group("/medical", nurseUp)
		{
			medical.POST("/medications", medicalHandler.LogMedication)
			medical.GET("/campers/:camperId/medications", medicalHandler.MedicationHistory)
			medical.POST("/incidents", medicalHandler.ReportIncident)
			medical.GET("/sessions/:sessionId/incidents", medicalHandler.Incidents)
		}
	}

	groups := protected.Group("/groups", staffUp)
	{
		groups.POST("", rosterHandler.CreateGroup)
		groups.POST("/:id/campers", rosterHandler.AssignCamper)
		groups.DELETE("/:id/campers/:camperId", rosterHandler.RemoveCamper)
	}

	sessionRosters := protected.Group("/sessions/:id", staffUp)
	{
		sessionRosters.GET("/groups", rosterHandler.ListGroups)
		sessionRosters.GET("/roster", rosterHandler.Roster)
		if cfg.Exports.Enabled {
			sessionRosters.POST("/roster/export", rosterHandler.Export)
		}
	}

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/summary", dashboardHandler.Summary)
	}

	protected.GET("/events", adminOnly, auditHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
