package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nuzul-stays/service-booking/internal/application"
	"github.com/nuzul-stays/service-booking/internal/auth"
	"github.com/nuzul-stays/service-booking/internal/cache"
	"github.com/nuzul-stays/service-booking/internal/config"
	"github.com/nuzul-stays/service-booking/internal/consumer"
	"github.com/nuzul-stays/service-booking/internal/database"
	bookingDomain "github.com/nuzul-stays/service-booking/internal/domain/booking"
	"github.com/nuzul-stays/service-booking/internal/events"
	"github.com/nuzul-stays/service-booking/internal/gateway"
	"github.com/nuzul-stays/service-booking/internal/handler"
	"github.com/nuzul-stays/service-booking/internal/logger"
	"github.com/nuzul-stays/service-booking/internal/middleware"
	"github.com/nuzul-stays/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.AvailabilityModel{},
			&repository.TransactionModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Connect to Redis
	redisClient, err := cache.NewRedisClient(cfg.RedisConfig)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()
	redisStore := cache.NewRedisStore(redisClient, "booking:")

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := events.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize payment gateways
	sadadCallbackURL := cfg.PublicBaseURL + "/sadad/callback"
	sadadGateway := gateway.NewSadadGateway(cfg.Sadad, sadadCallbackURL, log)
	paypalGateway := gateway.NewPayPalGateway(cfg.PayPal, log)
	gatewayRegistry := gateway.NewRegistry(sadadGateway, paypalGateway)

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	availabilityRepo := repository.NewGormAvailabilityRepository(db)
	transactionRepo := repository.NewGormTransactionRepository(db)

	// Initialize application services
	refundCalculator := bookingDomain.NewTieredRefundCalculator()
	bookingService := application.NewBookingService(
		bookingRepo,
		availabilityRepo,
		transactionRepo,
		refundCalculator,
		gatewayRegistry,
		kafkaProducer,
		cfg.HoldTTL,
		log,
	)
	paymentService := application.NewPaymentService(
		bookingRepo,
		transactionRepo,
		refundCalculator,
		gatewayRegistry,
		redisStore,
		kafkaProducer,
		log,
	)
	cleanupService := application.NewCleanupService(
		bookingRepo,
		availabilityRepo,
		kafkaProducer,
		log,
	)

	// Initialize and start payment event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	paymentConsumer := consumer.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		paymentService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Schedule the in-process hold-expiry sweep. The /cron/cleanup-bookings
	// endpoint covers deployments that prefer an external scheduler; running
	// both is safe because expiry is idempotent.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.SweepInterval), func() {
		sweepCtx, sweepCancel := context.WithTimeout(ctx, cfg.SweepInterval)
		defer sweepCancel()
		if _, err := cleanupService.ExpireStaleHolds(sweepCtx); err != nil {
			log.Error("scheduled hold-expiry sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("failed to schedule hold-expiry sweep", zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	callbackHandler := handler.NewCallbackHandler(paymentService, sadadGateway, paypalGateway, cfg.PaymentPageBase, log)
	cronHandler := handler.NewCronHandler(cleanupService, cfg.CronSecret)
	adminHandler := handler.NewAdminHandler(bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := handler.NewHealthHandler(db, redisClient, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	paymentHandler.RegisterRoutes(&router.RouterGroup, jwtManager)
	callbackHandler.RegisterRoutes(&router.RouterGroup)
	cronHandler.RegisterRoutes(&router.RouterGroup)
	adminHandler.RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop the sweep and cancel the consumer context
	sweeper.Stop()
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
