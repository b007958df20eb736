package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/opencampus-ph/portal-api/api/swagger"
	"github.com/opencampus-ph/portal-api/internal/handler"
	"github.com/opencampus-ph/portal-api/internal/middleware"
	"github.com/opencampus-ph/portal-api/internal/repository"
	"github.com/opencampus-ph/portal-api/internal/router"
	"github.com/opencampus-ph/portal-api/internal/service"
	"github.com/opencampus-ph/portal-api/pkg/cache"
	"github.com/opencampus-ph/portal-api/pkg/config"
	"github.com/opencampus-ph/portal-api/pkg/database"
	"github.com/opencampus-ph/portal-api/pkg/logger"
	corsmiddleware "github.com/opencampus-ph/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opencampus-ph/portal-api/pkg/middleware/requestid"
)

// @title College Portal API
// @version 1.0.0
// @description Enrollment and academic records API for students, professors, registrar, admission and dean
// @BasePath /
// @schemes http

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	validate := validator.New()
	metricsService := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	programRepo := repository.NewProgramRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	termRepo := repository.NewTermRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	// Redis is optional. Without it the dashboard falls back to uncached reads.
	var cacheRepo service.CacheRepository
	cacheEnabled := false
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheEnabled = true
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cacheEnabled)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	termService := service.NewTermService(termRepo, validate, logr)
	subjectService := service.NewSubjectService(subjectRepo, validate, logr)
	programService := service.NewProgramService(programRepo, subjectRepo, validate, logr)
	sectionService := service.NewSectionService(sectionRepo, subjectRepo, userRepo, termRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, programRepo, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, sectionRepo, subjectRepo, studentRepo, termRepo, validate, logr)
	gradeService := service.NewGradeService(gradeRepo, enrollmentRepo, sectionRepo, subjectRepo, studentRepo, validate, logr)
	recommendationService := service.NewRecommendationService(studentRepo, programRepo, gradeRepo, termRepo, sectionRepo, logr)
	exportService := service.NewExportService(enrollmentRepo, studentRepo, termRepo, nil, nil, logr)
	dashboardService := service.NewDashboardService(service.DashboardServiceParams{
		Students:    studentRepo,
		Sections:    sectionRepo,
		Grades:      gradeRepo,
		Enrollments: enrollmentRepo,
		Terms:       termRepo,
		Cache:       cacheService,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		Users:       handler.NewUserHandler(userService),
		Terms:       handler.NewTermHandler(termService),
		Subjects:    handler.NewSubjectHandler(subjectService),
		Programs:    handler.NewProgramHandler(programService),
		Sections:    handler.NewSectionHandler(sectionService),
		Students:    handler.NewStudentHandler(studentService, gradeService, recommendationService),
		Grades:      handler.NewGradeHandler(gradeService),
		Enrollments: handler.NewEnrollmentHandler(enrollmentService, studentService, exportService, dashboardService),
		Dashboard:   handler.NewDashboardHandler(dashboardService, metricsService),
		Metrics:     handler.NewMetricsHandler(metricsService, db),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	router.Register(r, cfg.APIPrefix, authService, handlers, cfg.Dashboard.Enabled)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
