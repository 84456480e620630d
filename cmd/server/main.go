package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
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

	"github.com/cartoprint/api/internal/client"
	"github.com/cartoprint/api/internal/config"
	"github.com/cartoprint/api/internal/handler"
	"github.com/cartoprint/api/internal/middleware"
	"github.com/cartoprint/api/internal/model"
	"github.com/cartoprint/api/internal/render"
	"github.com/cartoprint/api/internal/service"
	"github.com/cartoprint/api/internal/worker"
	ws "github.com/cartoprint/api/internal/websocket"
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

	// Object storage is optional; without it images are served from Redis.
	var storage client.StorageClient
	if r2, err := client.NewR2Client(&cfg.Storage); err != nil {
		log.Printf("Object storage disabled: %v", err)
	} else {
		storage = r2
	}

	// Initialize services
	printService := service.NewPrintService(redisClient, asynqClient)

	// Initialize handlers
	printHandler := handler.NewPrintHandler(printService, validate)

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
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "cartoprint-api"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	api.Post("/print", rateLimiter.PrintLimit(cfg.RateLimit.PrintPerHour), printHandler.Submit)
	api.Get("/print/status/:jobId", printHandler.Status)
	api.Get("/print/result/:jobId", printHandler.Result)
	api.Get("/print/result/:jobId/image", printHandler.Image)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID, err := parseWSJobID(c)
		if err != nil {
			c.Close()
			return
		}

		// Replay the latest known state so late subscribers are not left
		// waiting for the next live update. The hub runs the snapshot after
		// registration, so a job finishing while the subscriber connects
		// still ends the stream with its terminal message. An unknown job
		// ends the stream immediately.
		hub.HandleConnection(c, jobID, func() ([]byte, bool) {
			status, err := printService.GetStatus(context.Background(), jobID)
			if err != nil {
				return nil, true
			}

			if status.Status == model.JobStatusFinished {
				msg := model.WSCompleteMessage{
					Type:   model.WSMessageTypeComplete,
					JobID:  jobID,
					Result: status,
				}
				data, _ := json.Marshal(msg)
				return data, true
			}

			msg := model.WSProgressMessage{
				Type:     model.WSMessageTypeProgress,
				JobID:    jobID,
				Status:   status.Status,
				Progress: status.Progress,
			}
			data, _ := json.Marshal(msg)
			return data, false
		})
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, printService, hub, storage)

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

func startWorkerServer(cfg *config.Config, printService *service.PrintService, hub *ws.Hub, storage client.StorageClient) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"print": 10,
			},
		},
	)

	loader := render.NewHTTPSourceLoader(time.Duration(cfg.Render.SourceTimeout) * time.Second)
	opts := render.Options{
		TickInterval:       time.Duration(cfg.Render.TickIntervalMs) * time.Millisecond,
		MaxNewLoads:        cfg.Render.MaxNewLoads,
		MaxConcurrentLoads: cfg.Render.MaxConcurrentLoads,
		ScaleBarMinWidth:   cfg.Render.ScaleBarMinWidth,
	}
	printWorker := worker.NewPrintWorker(printService, hub, storage, loader, opts)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePrint, printWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func parseWSJobID(c *websocket.Conn) (int64, error) {
	return strconv.ParseInt(c.Params("jobId"), 10, 64)
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
