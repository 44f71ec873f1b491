package server

import (
	"backend-yatube/internal/accesslog"
	"backend-yatube/internal/admin"
	"backend-yatube/internal/auth"
	"backend-yatube/internal/blog"
	"backend-yatube/internal/cache"
	"backend-yatube/internal/config"
	"backend-yatube/internal/db"
	"backend-yatube/internal/feed"
	"backend-yatube/internal/follow"
	"backend-yatube/internal/storage"
	"backend-yatube/internal/stream"
	"backend-yatube/internal/views"
	"backend-yatube/internal/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub
	Cache  *cache.Cache
	Views  *html.Engine

	accessLog *kafka.Writer
}

// NewServer wires every service onto one fiber app. The page cache lives in
// Redis when a client is given and in process memory otherwise.
func NewServer(cfg config.Config, q db.Querier, redisClient *redis.Client) *Server {
	engine := views.New()
	proxies := nonEmpty(cfg.TrustedProxies)
	app := fiber.New(fiber.Config{
		AppName:                 cfg.ServiceName,
		Views:                   engine,
		ErrorHandler:            web.ErrorHandler(engine),
		BodyLimit:               10 * 1024 * 1024,
		EnableTrustedProxyCheck: len(proxies) > 0,
		TrustedProxies:          proxies,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        q,
		Redis:     redisClient,
		Stream:    stream.NewHub(redisClient),
		Cache:     cache.New(cache.NewBackend(redisClient, cfg.CacheTTL), cfg.CacheTTL),
		Views:     engine,
		accessLog: accesslog.NewKafkaWriter(nonEmpty(cfg.KafkaBrokers), cfg.KafkaTopic),
	}
	if s.accessLog != nil {
		app.Use(accesslog.Middleware(s.accessLog, cfg.ServiceName))
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	s.App.Use(jwtMiddleware)

	blogSvc := blog.NewService(s.DB)
	follows := follow.NewService(s.DB)
	media := storage.NewService(s.DB, s.Cfg.MediaRoot, s.Cfg.MediaURL)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB, s.Cfg.SessionTTL))
	admin.RegisterRoutes(s.App.Group("/admin"), blogSvc, s.Cache, s.Cfg.AdminToken)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	storage.RegisterRoutes(s.App, media, jwtMiddleware)
	web.RegisterRoutes(s.App, web.NewHandler(web.Deps{
		Blog:     blogSvc,
		Feeds:    feed.NewService(s.DB, blogSvc, follows),
		Follows:  follows,
		Cache:    s.Cache,
		Views:    s.Views,
		Images:   media,
		Notifier: s.Stream,
	}))
}

// Close stops the websocket hub and flushes pending access log entries.
func (s *Server) Close() error {
	if err := s.Stream.Close(); err != nil {
		log.WithError(err).Warn("[server] close stream hub")
	}
	if s.accessLog != nil {
		return s.accessLog.Close()
	}
	return nil
}

// nonEmpty drops the blank entries viper leaves for unset list keys.
func nonEmpty(list []string) []string {
	var out []string
	for _, b := range list {
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}
