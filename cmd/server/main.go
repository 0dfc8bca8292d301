package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradegate/customs-api/internal/auth"
	"github.com/tradegate/customs-api/internal/clearance"
	"github.com/tradegate/customs-api/internal/database"
	"github.com/tradegate/customs-api/internal/guarantee"
	"github.com/tradegate/customs-api/internal/risk"
	"github.com/tradegate/customs-api/internal/transit"
	"github.com/tradegate/customs-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the customs clearance API server with graceful
// shutdown support. It sets up all required services, the database
// connection, and API routes.
func main() {
	// Load environment from .env when present
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "customs-secret-key"
	}

	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DB_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Risk policy: file-based when configured, built-in defaults otherwise
	policy := risk.DefaultPolicy()
	if path := os.Getenv("RISK_POLICY"); path != "" {
		loaded, err := risk.LoadPolicy(path)
		if err != nil {
			zlog.Fatal().Err(err).Str("path", path).Msg("Failed to load risk policy")
		}
		policy = loaded
		zlog.Info().Str("path", path).Msg("Loaded risk policy")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	reference := risk.NewStaticReference()
	engine := risk.NewEngine(policy, reference)

	guaranteeService := guarantee.NewService(db)
	guaranteeHandlers := guarantee.NewGinHandlers(guaranteeService)

	documents := clearance.NewMemoryDocumentStore()
	clearanceService := clearance.NewService(db, engine, reference,
		guaranteeService, documents, clearance.LogNotifier{}, nil)
	clearanceHandlers := clearance.NewGinHandlers(clearanceService, documents)

	transitService := transit.NewService(db, guaranteeService, clearanceService)
	transitHandlers := transit.NewGinHandlers(transitService)

	// Create and start the transit overdue processor
	transitProcessor := transit.NewProcessor(transitService.GetDB())
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go transitProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, []byte(jwtSecret), authHandlers, clearanceHandlers, guaranteeHandlers, transitHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Declaration routes: Protected by JWT authentication, used by brokers
// - Internal routes: Protected by internal network authentication, used by
//   the document management system, inspection units, the payment gateway
//   and exit offices
func setupRoutes(
	router *gin.Engine,
	jwtSecret []byte,
	authHandlers *auth.GinHandlers,
	clearanceHandlers *clearance.GinHandlers,
	guaranteeHandlers *guarantee.GinHandlers,
	transitHandlers *transit.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Declaration routes used by customs brokers
		declarations := v1.Group("/declarations")
		declarations.Use(middleware.JWTAuth(jwtSecret))
		{
			declarations.POST("", clearanceHandlers.SubmitHandler())
			declarations.GET("/:declaration_id", clearanceHandlers.StatusHandler())
			declarations.GET("/:declaration_id/profile", clearanceHandlers.ProfileHandler())
			declarations.POST("/:declaration_id/appeal", clearanceHandlers.AppealHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/documents/:declaration_id", clearanceHandlers.DocumentCheckHandler())
			internal.POST("/inspections/:declaration_id", clearanceHandlers.InspectionHandler())
			internal.POST("/payments/:declaration_id", clearanceHandlers.PaymentHandler())
			internal.POST("/appeals/:declaration_id/resolve", clearanceHandlers.ResolveAppealHandler())
			internal.POST("/rejections/:declaration_id", clearanceHandlers.RejectHandler())

			internal.POST("/guarantees", guaranteeHandlers.OpenGuaranteeHandler())
			internal.GET("/guarantees/:guarantee_id", guaranteeHandlers.GetGuaranteeHandler())
			internal.POST("/guarantees/:guarantee_id/reserve", guaranteeHandlers.ReserveHandler())
			internal.POST("/guarantees/:guarantee_id/release", guaranteeHandlers.ReleaseHandler())
			internal.POST("/guarantees/:guarantee_id/close", guaranteeHandlers.CloseHandler())

			internal.POST("/transit", transitHandlers.OpenHandler())
			internal.GET("/transit/:movement_id", transitHandlers.GetHandler())
			internal.POST("/transit/:movement_id/position", transitHandlers.PositionHandler())
			internal.POST("/transit/:movement_id/exit", transitHandlers.ExitHandler())
			internal.POST("/transit/:movement_id/resolve", transitHandlers.ResolveHandler())
		}
	}
}
