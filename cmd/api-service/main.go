package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/linkpulse/linkpulse/internal"
	"github.com/linkpulse/linkpulse/internal/events"
	"github.com/linkpulse/linkpulse/internal/geo"
	applog "github.com/linkpulse/linkpulse/internal/logger"
	"github.com/linkpulse/linkpulse/internal/service"
	"github.com/linkpulse/linkpulse/internal/store"
)

type Config struct {
	AppDomain string
	Port      string
	Links     *service.LinkService
	Analytics *service.AnalyticsService
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	ctx := context.Background()
	cfg := loadConfig(ctx)

	app := fiber.New()
	app.Use(applog.FiberMiddleware())
	app.Use(cors.New())

	app.Post("/shorten", handleShorten(cfg))
	app.Get("/u/:slug", handleRedirect(cfg))
	app.Get("/analytics/:slug", handleAnalytics(cfg))
	app.Get("/stats/:slug", handleStats(cfg))
	app.Get("/trends/:slug", handleTrends(cfg))
	app.Get("/health", handleHealth(cfg))

	slog.Info("Starting API Service", "port", cfg.Port)
	if err := app.Listen(cfg.Port); err != nil {
		slog.Error("API Service failed", "err", err)
		os.Exit(1)
	}
}

func handleShorten(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			URL      string `json:"url"`
			TTLHours *int   `json:"ttl_hours"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
		if req.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "URL is required"})
		}

		ttlHours := 24
		if req.TTLHours != nil {
			ttlHours = *req.TTLHours
		}

		record, err := cfg.Links.CreateShortLink(c.Context(), req.URL, ttlHours)
		if err != nil {
			if internal.IsValidationErr(err) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			slog.Error("Error creating short link", "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		return c.JSON(fiber.Map{
			"slug":         record.Slug,
			"short_url":    cfg.AppDomain + "/u/" + record.Slug,
			"original_url": record.OriginalURL,
			"expires_at":   record.ExpiresAt,
		})
	}
}

func handleRedirect(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")
		userAgent := c.Get("User-Agent")
		if userAgent == "" {
			userAgent = "Unknown"
		}

		originalURL, err := cfg.Links.ResolveRedirect(c.Context(), slug, c.IP(), userAgent)
		if err != nil {
			if errors.Is(err, internal.ErrLinkNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found or expired"})
			}
			slog.Error("Error resolving redirect", "slug", slug, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		return c.Redirect(originalURL, fiber.StatusFound)
	}
}

func handleAnalytics(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")

		summary, err := cfg.Links.GetAnalytics(c.Context(), slug)
		if err != nil {
			if errors.Is(err, internal.ErrLinkNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
			}
			slog.Error("Error loading analytics", "slug", slug, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		return c.JSON(summary)
	}
}

func handleStats(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")

		stats, err := cfg.Analytics.GetStats(c.Context(), slug)
		if err != nil {
			if errors.Is(err, internal.ErrLinkNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
			}
			slog.Error("Error loading stats", "slug", slug, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		return c.JSON(stats)
	}
}

func handleTrends(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slug := c.Params("slug")

		trends, err := cfg.Analytics.GetTrends(c.Context(), slug)
		if err != nil {
			if errors.Is(err, internal.ErrLinkNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
			}
			slog.Error("Error loading trends", "slug", slug, "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}

		return c.JSON(trends)
	}
}

func handleHealth(cfg *Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	}
}

func loadConfig(ctx context.Context) *Config {
	linkStore := buildStore()

	var resolver geo.Resolver = geo.NewHTTPResolver()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			slog.Error("Unable to connect to Redis", "err", err)
			os.Exit(1)
		}
		linkStore = store.NewCachedStore(linkStore, rdb)
		resolver = geo.NewCachedResolver(resolver, rdb)
		slog.Info("Redis caching enabled", "addr", addr)
	}

	opts := service.LinkServiceOptions{}
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		opts.Publisher = buildPublisher(url)
	}

	return &Config{
		AppDomain: getenvDefault("APP_DOMAIN", "http://localhost:8080"),
		Port:      getenvDefault("API_SERVICE_PORT", ":8080"),
		Links:     service.NewLinkService(linkStore, resolver, opts),
		Analytics: service.NewAnalyticsService(linkStore),
	}
}

func buildStore() store.LinkStore {
	backend := getenvDefault("STORE_BACKEND", "memory")
	switch backend {
	case "memory":
		slog.Info("Using in-memory store")
		return store.NewMemoryStore()
	case "file":
		path := getenvDefault("DATA_FILE", "data/linkpulse_data.json")
		s, err := store.NewFileStore(path)
		if err != nil {
			slog.Error("Unable to open file store", "path", path, "err", err)
			os.Exit(1)
		}
		slog.Info("Using file store", "path", path)
		return s
	case "sqlite":
		path := getenvDefault("SQLITE_PATH", "data/linkpulse.db")
		s, err := store.NewSQLiteStore(path)
		if err != nil {
			slog.Error("Unable to open sqlite store", "path", path, "err", err)
			os.Exit(1)
		}
		slog.Info("Using sqlite store", "path", path)
		return s
	case "postgres":
		db, err := gorm.Open(postgres.Open(os.Getenv("DB_URL")), &gorm.Config{
			Logger:         applog.NewGormLogger(os.Getenv("GORM_LOG_LEVEL")),
			TranslateError: true,
		})
		if err != nil {
			slog.Error("Unable to connect to database", "err", err)
			os.Exit(1)
		}
		s, err := store.NewPostgresStore(db)
		if err != nil {
			slog.Error("Unable to migrate database", "err", err)
			os.Exit(1)
		}
		slog.Info("Using postgres store")
		return s
	default:
		slog.Error("Unknown STORE_BACKEND", "backend", backend)
		os.Exit(1)
		return nil
	}
}

func buildPublisher(url string) events.Publisher {
	conn, err := amqp091.Dial(url)
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	ch, err := conn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	pub, err := events.NewQueuePublisher(ch, getenvDefault("CLICK_QUEUE_NAME", "click_events"))
	if err != nil {
		slog.Error("Failed to declare RabbitMQ queue", "err", err)
		os.Exit(1)
	}
	slog.Info("Click event publishing enabled")
	return pub
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
