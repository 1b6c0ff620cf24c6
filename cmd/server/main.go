package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sitecloner/api/internal/client"
	"github.com/sitecloner/api/internal/config"
	"github.com/sitecloner/api/internal/handler"
	"github.com/sitecloner/api/internal/middleware"
	"github.com/sitecloner/api/internal/pipeline"
	"github.com/sitecloner/api/internal/service"
	"github.com/sitecloner/api/internal/session"
	"github.com/sitecloner/api/internal/urlcheck"
	"github.com/sitecloner/api/internal/worker"
	ws "github.com/sitecloner/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection. Without Redis we fall back to an in-memory
	// store and in-process job execution, which is enough for local dev.
	ctx := context.Background()
	redisAvailable := true
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available, using in-memory session store: %v", err)
		redisAvailable = false
	}

	// Initialize session store
	var store session.Store
	if redisAvailable {
		ttl := time.Duration(cfg.Pipeline.SessionTTLHours) * time.Hour
		store = session.NewRedisStore(redisClient, ttl)
	} else {
		store = session.NewMemoryStore()
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize external clients
	browserClient := client.NewBrowserClient(&cfg.Browser)
	anthropicClient := client.NewAnthropicClient(&cfg.Anthropic)

	var artifacts pipeline.ArtifactStore
	if cfg.Storage.Endpoint != "" {
		if storageClient, err := client.NewS3Client(&cfg.Storage); err != nil {
			log.Printf("Warning: storage client unavailable: %v", err)
		} else {
			artifacts = worker.NewStorageArtifacts(storageClient)
		}
	}

	// Initialize pipeline runner
	collaborators := worker.NewCollaborators(browserClient, anthropicClient)
	stageTimeout := time.Duration(cfg.Pipeline.StageTimeout) * time.Second
	runner := pipeline.NewRunner(store, collaborators, hub, artifacts, stageTimeout)

	// Initialize job dispatcher
	var dispatcher pipeline.Dispatcher
	var asynqClient *asynq.Client
	if redisAvailable {
		asynqClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer asynqClient.Close()
		dispatcher = pipeline.NewAsynqDispatcher(asynqClient)
	} else {
		dispatcher = pipeline.NewGoDispatcher(runner)
	}

	// Initialize services and handlers
	cloneService := service.NewCloneService(store, urlcheck.NewPublicURLValidator(), dispatcher)
	cloneHandler := handler.NewCloneHandler(cloneService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Root and health endpoints
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   "Website Cloner API",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		services := fiber.Map{
			"redis":     redisAvailable,
			"browser":   browserClient.IsConfigured(),
			"anthropic": anthropicClient.IsConfigured(),
			"storage":   artifacts != nil,
		}
		return c.JSON(fiber.Map{
			"status":   "healthy",
			"services": services,
		})
	})

	// API routes. Auth is enforced only when a JWT secret is configured;
	// the websocket and health endpoints stay open either way.
	authRequired := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.JWT.Secret != "" {
		authRequired = authMiddleware.Authenticate()
	}

	if redisAvailable {
		app.Post("/clone", authRequired, rateLimiter.CloneLimit(cfg.RateLimit.ClonePerHour), cloneHandler.Submit)
	} else {
		app.Post("/clone", authRequired, cloneHandler.Submit)
	}
	app.Get("/clone/:sessionId", authRequired, cloneHandler.Status)
	app.Delete("/clone/:sessionId", authRequired, cloneHandler.Delete)
	app.Get("/sessions", authRequired, cloneHandler.List)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/clone/:sessionId", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		hub.HandleConnection(c, sessionID)
	}))

	// Start Asynq worker server
	if redisAvailable {
		go startWorkerServer(cfg, runner)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, runner *pipeline.Runner) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Pipeline.Concurrency,
			Queues: map[string]int{
				"clone": 10,
			},
		},
	)

	cloneWorker := worker.NewCloneWorker(runner)

	mux := asynq.NewServeMux()
	mux.HandleFunc(pipeline.TaskTypeClone, cloneWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
