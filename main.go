package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/coachdesk/commission_engine/config"
	"github.com/coachdesk/commission_engine/controllers"
	"github.com/coachdesk/commission_engine/middleware"
	"github.com/coachdesk/commission_engine/repositories"
	"github.com/coachdesk/commission_engine/routes"
	"github.com/coachdesk/commission_engine/services"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis (config cache + distribution locks)
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Commission engine is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	ledger := repositories.NewCommissionRepository(client)
	structures := repositories.NewStructureRepository(client, redisClient)
	coaches := repositories.NewCoachRepository(client)
	batches := repositories.NewPayoutRepository(client)

	// Distribution locks are distributed when Redis is available and fall
	// back to in-process locking otherwise
	var locker services.Locker
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient)
	} else {
		locker = services.NewLocalLocker()
	}

	// Initialize services
	gateway := services.NewGatewayService()
	engine := services.NewDistributionEngine(ledger, coaches, structures, locker)
	batcher := services.NewPayoutBatcher(ledger, batches, coaches, gateway)
	analytics := services.NewAnalyticsService(client)

	// Initialize controllers
	authController := controllers.NewAuthController(client)
	structureController := controllers.NewStructureController(structures)
	commissionController := controllers.NewCommissionController(engine, ledger, coaches, structures)
	payoutController := controllers.NewPayoutController(batcher, batches, ledger)
	analyticsController := controllers.NewAnalyticsController(analytics)
	coachController := controllers.NewCoachController(coaches)

	// Register routes
	routes.SetupRoutes(e, authController, structureController, commissionController, payoutController, analyticsController, coachController)

	// Reconcile payout batches stuck in processing (gateway timeouts)
	go func() {
		interval := 5 * time.Minute
		for {
			time.Sleep(interval)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			batcher.ReconcileStale(ctx, 10*time.Minute)
			cancel()
		}
	}()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}
