package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/tripwell/booking-payment-backend/internal/config"
	"github.com/tripwell/booking-payment-backend/internal/database"
	"github.com/tripwell/booking-payment-backend/internal/handlers"
	"github.com/tripwell/booking-payment-backend/internal/models"
	"github.com/tripwell/booking-payment-backend/internal/services"
	"github.com/tripwell/booking-payment-backend/pkg/notify"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// defaultHotelGuestFormatter shapes hotel guest data into the backend's
// expected payload. Returns nil when no lead guest can be identified,
// which the dispatcher treats as an incomplete-booking precondition.
func defaultHotelGuestFormatter(hotel *models.HotelDetails) map[string]interface{} {
	if len(hotel.Guests) == 0 {
		return nil
	}

	lead := hotel.Guests[0]
	for _, g := range hotel.Guests {
		if g.IsLead {
			lead = g
			break
		}
	}
	if lead.FirstName == "" || lead.LastName == "" {
		return nil
	}

	guests := make([]map[string]interface{}, 0, len(hotel.Guests))
	for _, g := range hotel.Guests {
		guests = append(guests, map[string]interface{}{
			"firstName": g.FirstName,
			"lastName":  g.LastName,
			"isLead":    g.IsLead,
		})
	}

	return map[string]interface{}{
		"hotelId":     hotel.HotelID,
		"roomCode":    hotel.RoomCode,
		"checkInDay":  hotel.CheckInDay,
		"checkOutDay": hotel.CheckOutDay,
		"leadGuest":   lead.FirstName + " " + lead.LastName,
		"nationality": hotel.Nationality,
		"guests":      guests,
	}
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Tripwell Booking Payment Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection (payment audit trail)
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize services
	logger.Info("Initializing services...")
	auditRepo := database.NewPaymentAuditRepository(db, logger)
	pricingService := services.NewPricingService(cfg.Pricing, logger)
	gatewayService := services.NewGatewayService(cfg.Gateway, logger)
	executionService := services.NewExecutionService(cfg.Backend, defaultHotelGuestFormatter, logger)
	orderStatusClient := services.NewOrderStatusClient(cfg.Backend, logger)
	reconciliationService := services.NewReconciliationService(orderStatusClient, services.ReconcilePolicy{
		PollInterval: cfg.Reconcile.PollInterval,
		MaxAttempts:  cfg.Reconcile.MaxAttempts,
		MaxWait:      cfg.Reconcile.MaxWait,
	}, logger)

	notifyGateway := notify.NewHTTPGateway(notify.HTTPConfig{
		URL:     cfg.Notify.URL,
		APIKey:  cfg.Notify.APIKey,
		Timeout: cfg.Notify.Timeout,
	})
	if cfg.Notify.URL == "" {
		logger.Warn("NOTIFY_URL not configured - confirmation notifications will fail and be retried on observation")
	}
	notificationService := services.NewNotificationService(notifyGateway, logger)

	checkoutService := services.NewCheckoutService(
		pricingService,
		gatewayService,
		executionService,
		reconciliationService,
		notificationService,
		auditRepo,
		logger,
	)

	// Start the stale-attempt sweeper
	expirationService := services.NewAttemptExpirationService(checkoutService, cfg.Reconcile.AttemptTTL, logger)
	expirationService.Start()
	defer expirationService.Stop()

	logger.Info("Services initialized")

	// Initialize handlers
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, checkoutService))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		checkout := v1.Group("/checkout")
		{
			checkout.POST("/quote", checkoutHandler.Quote)
			checkout.POST("/attempts", checkoutHandler.CreateAttempt)
			checkout.POST("/attempts/:attempt_id/authorize", checkoutHandler.Authorize)
			checkout.POST("/attempts/:attempt_id/execute", checkoutHandler.Execute)
			checkout.GET("/attempts/:attempt_id", checkoutHandler.Status)
			checkout.DELETE("/attempts/:attempt_id", checkoutHandler.Teardown)
		}
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Cancel running reconciliation loops before the listener closes
	checkoutService.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// requestLogger logs each request with structured fields
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *sqlx.DB, checkout *services.CheckoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":          "healthy",
			"database":        "healthy",
			"version":         version,
			"active_attempts": checkout.AttemptCount(),
			"timestamp":       time.Now().Unix(),
		})
	}
}
