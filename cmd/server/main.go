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

	"github.com/shortreel/api/internal/channel"
	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/handler"
	"github.com/shortreel/api/internal/middleware"
	"github.com/shortreel/api/internal/poller"
	"github.com/shortreel/api/internal/service"
	"github.com/shortreel/api/internal/worker"
	ws "github.com/shortreel/api/internal/websocket"
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

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Platform client, push channel, fallback poller
	platformClient := client.NewPlatformClient(&cfg.Platform)
	subscriber := channel.NewSubscriber(&cfg.Platform)
	statusPoller := poller.New(platformClient, cfg.Watch.PollInterval, cfg.Watch.PollCap)

	// Draft store and cache
	store := draft.NewStore()
	cache := draft.NewCache(redisClient)
	tasks := worker.NewAsynqEnqueuer(asynqClient)

	// Dispatcher owns job submission and the per-job watch
	dispatcher := dispatch.New(store, cache, platformClient, subscriber, statusPoller, tasks, hub, cfg.Watch)

	// Initialize services
	draftService := service.NewDraftService(store, cache, dispatcher, tasks)
	renderService := service.NewRenderService(store, dispatcher, platformClient)
	projectService := service.NewProjectService(store, cache, dispatcher, platformClient)

	// Initialize handlers
	draftHandler := handler.NewDraftHandler(draftService, validate)
	renderHandler := handler.NewRenderHandler(renderService)
	projectHandler := handler.NewProjectHandler(projectService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-Client-ID",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Draft routes
	draftGroup := api.Group("/draft")
	draftGroup.Post("/start", draftHandler.Start)
	draftGroup.Get("/", draftHandler.Get)
	draftGroup.Patch("/", draftHandler.Update)
	draftGroup.Put("/characters", draftHandler.SetCharacters)
	draftGroup.Post("/finish", draftHandler.Finish)
	draftGroup.Post("/:draftId/resume", draftHandler.Resume)
	draftGroup.Delete("/", draftHandler.Clear)

	// Render routes
	render := api.Group("/render")
	render.Post("/preview", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Preview)
	render.Post("/final", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Final)
	render.Get("/status", renderHandler.Status)
	render.Post("/refresh", renderHandler.Refresh)
	render.Post("/captions", renderHandler.Captions)

	// Project routes
	api.Get("/project", projectHandler.Get)
	api.Delete("/project", projectHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/drafts/:draftId", websocket.New(func(c *websocket.Conn) {
		draftID := c.Params("draftId")
		hub.HandleConnection(c, draftID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, platformClient, cache, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		dispatcher.Stop()
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

func startWorkerServer(cfg *config.Config, platform client.RenderPlatform, cache *draft.Cache, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				worker.QueueProjects: 10,
			},
		},
	)

	// Create workers
	promoteWorker := worker.NewPromoteWorker(platform, cache, hub)
	syncWorker := worker.NewSyncWorker(platform, hub)

	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskTypeProjectPromote, promoteWorker.ProcessTask)
	mux.HandleFunc(worker.TaskTypeProjectSync, syncWorker.ProcessTask)

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
