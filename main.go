package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crc-submission-proxy/handlers"
	"crc-submission-proxy/middleware"
	"crc-submission-proxy/models"
	"crc-submission-proxy/services"
	"crc-submission-proxy/workers"

	"github.com/gofiber/fiber/v2"
	recovermw "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	if supabaseURL == "" {
		log.Fatal("SUPABASE_URL environment variable not set")
	}
	supabaseServiceKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if supabaseServiceKey == "" {
		log.Fatal("SUPABASE_SERVICE_KEY environment variable not set")
	}
	githubToken := os.Getenv("GITHUB_TOKEN")
	if githubToken == "" {
		log.Fatal("GITHUB_TOKEN environment variable not set")
	}
	githubRepo := os.Getenv("GITHUB_REPO")
	if githubRepo == "" {
		log.Fatal("GITHUB_REPO environment variable not set")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Printf("❌ Unhandled error on %s: %v", c.Path(), err)
			return c.Status(code).JSON(fiber.Map{"error": "Internal error"})
		},
	})
	app.Use(recovermw.New())

	corsConfig := middleware.NewCORSConfig(
		os.Getenv("ALLOWED_ORIGIN"),
		os.Getenv("ENVIRONMENT") == "development",
	)
	app.Use(middleware.CORS(corsConfig))

	// Rate limiting: shared Redis windows when configured, in-process otherwise.
	var memoryLimiter *middleware.MemoryStore
	var limiterStore middleware.LimiterStore
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		limiterStore = middleware.NewRedisStore(rdb)
		log.Println("✅ Rate limiter using Redis at " + redisAddr)
	} else {
		memoryLimiter = middleware.NewMemoryStore()
		limiterStore = memoryLimiter
		log.Println("⚠️  Rate limiter using in-process memory (per-instance ceilings)")
	}
	app.Use(middleware.RateLimit(limiterStore))

	// Optional audit trail.
	var audit *services.AuditService
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to audit database:", err)
		}
		if err := db.AutoMigrate(&models.AuditEvent{}); err != nil {
			log.Fatal("failed to migrate audit database:", err)
		}
		audit = services.NewAuditService(db)
		log.Println("✅ Audit trail enabled")
	}

	store := services.NewStoreClient(supabaseURL, supabaseServiceKey)
	identity := services.NewIdentityClient(supabaseURL, supabaseServiceKey, store)
	turnstile := services.NewTurnstileClient(os.Getenv("TURNSTILE_SECRET"))
	github := services.NewGitHubClient(githubToken, githubRepo)
	notifier := services.NewNotifier(
		os.Getenv("DISCORD_WEBHOOK_RUNS"),
		os.Getenv("DISCORD_WEBHOOK_GAMES"),
		os.Getenv("DISCORD_WEBHOOK_PROFILES"),
	)
	archive := services.NewArchiveClientFromEnv()
	if archive != nil {
		log.Println("✅ R2 archive mirror enabled")
	}

	submissions := services.NewSubmissionService(store, turnstile, notifier, audit)
	approvals := services.NewApprovalService(store, identity, github, notifier, archive, audit)

	handlers.SetupRoutes(app, submissions, approvals)

	janitor := workers.NewJanitor(memoryLimiter, store, notifier)
	janitor.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8787"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Submission proxy running on http://localhost:%s", port)
	log.Printf("✅ CORS default origin: %s", corsConfig.DefaultOrigin)

	<-ctx.Done()
	log.Println("Shutting down server...")
	janitor.Stop()
	_ = app.Shutdown()
}
