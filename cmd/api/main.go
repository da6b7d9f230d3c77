package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/database"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/router"
	"github.com/noah-isme/gema-lms-api/internal/scheduler"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/pkg/certificate"
	cloud "github.com/noah-isme/gema-lms-api/pkg/cloudinary"
	"github.com/noah-isme/gema-lms-api/pkg/razorpay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set, progress cache disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	var mediaStorage, certificateStorage service.FileStorage
	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("cloudinary disabled, uploads and certificate issuance will fail")
	} else {
		mediaStorage = uploader.Sub("media")
		certificateStorage = uploader.Sub("certificates")
	}

	var gateway service.PaymentGateway
	razorpayClient, err := razorpay.New(razorpay.Config{
		KeyID:     cfg.RazorpayKeyID,
		KeySecret: cfg.RazorpayKeySecret,
		BaseURL:   cfg.RazorpayBaseURL,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("razorpay disabled, paid enrollment unavailable")
	} else {
		gateway = razorpayClient
	}

	renderer, err := certificate.NewRenderer()
	if err != nil {
		log.Fatalf("failed to initialise certificate renderer: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	repos := service.NewRepositories(db)
	publisher := service.NewEventPublisher(natsConn, cfg.EventSubjectPrefix, logger)
	selector := service.NewOptionSelector(rand.New(rand.NewSource(time.Now().UnixNano())))

	progressService := service.NewProgressService(repos, validate, redisClient, cfg.ProgressCacheTTL, cfg.ProgressDenominator, publisher, logger)
	curriculumService := service.NewCurriculumService(repos, selector, mediaStorage, cfg.PurgeRetention, validate, logger)
	assignmentService := service.NewAssignmentService(repos, selector, progressService, validate, logger)
	quizService := service.NewQuizService(repos, selector, validate, logger)
	templateService := service.NewCertificateTemplateService(repos, progressService, validate, logger)
	certificateService := service.NewCertificateService(repos, service.CertificateServiceConfig{
		Policy:        cfg.ProgressDenominator,
		VerifyBaseURL: cfg.CertificateVerifyBaseURL,
		Renderer:      renderer,
		Storage:       certificateStorage,
		Invalidator:   progressService,
		Publisher:     publisher,
	}, logger)
	enrollmentService := service.NewEnrollmentService(repos, publisher, logger)
	paymentService := service.NewPaymentService(repos, gateway, cfg.PaymentCurrency, publisher, validate, logger)
	profileService := service.NewProfileService(repos, validate, logger)
	purgeService := service.NewPurgeService(repos.Purge, cfg.PurgeRetention, logger)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := templateService.EnsureDefault(seedCtx); err != nil {
		cancelSeed()
		log.Fatalf("failed to seed default certificate template: %v", err)
	}
	cancelSeed()

	jobs := scheduler.New(logger, time.Minute)
	if err := jobs.Add("curriculum_purge", cfg.PurgeSchedule, func(ctx context.Context) error {
		_, err := purgeService.Run(ctx)
		return err
	}); err != nil {
		log.Fatalf("failed to schedule purge: %v", err)
	}
	jobs.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(service.MaxMediaBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AppName:      cfg.AppName,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		CurriculumHandler:  handler.NewCurriculumHandler(curriculumService, logger),
		ProgressHandler:    handler.NewProgressHandler(progressService, logger),
		AssignmentHandler:  handler.NewAssignmentHandler(assignmentService, logger),
		QuizHandler:        handler.NewQuizHandler(quizService, logger),
		CertificateHandler: handler.NewCertificateHandler(certificateService, logger),
		TemplateHandler:    handler.NewCertificateTemplateHandler(templateService, logger),
		PaymentHandler:     handler.NewPaymentHandler(enrollmentService, paymentService, logger),
		ProfileHandler:     handler.NewProfileHandler(profileService, logger),
		JWTMiddleware:      middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks: map[string]handler.DependencyCheck{
			"database": database.PostgresCheck(db),
			"redis":    database.RedisCheck(redisClient),
			"nats":     database.NATSCheck(natsConn),
		},
		Logger: logger,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, jobs)
}

func waitForShutdown(app *fiber.App, jobs *scheduler.Scheduler) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := jobs.Stop(ctx); err != nil {
		log.Printf("scheduler did not stop cleanly: %v", err)
	}

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
