// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"gatehouse/internal/cache"
	"gatehouse/internal/config"
	"gatehouse/internal/credential"
	"gatehouse/internal/database"
	"gatehouse/internal/featureflags"
	"gatehouse/internal/gate"
	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"
	"gatehouse/internal/repository"
	"gatehouse/internal/service"
	"gatehouse/internal/tenancy"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// fiberprometheus registers its collectors globally, so every Server in the
// process shares one.
var (
	promOnce      sync.Once
	promCollector *fiberprometheus.FiberPrometheus
)

func metricsCollector() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promCollector = middleware.InitMetrics("gatehouse-api")
	})
	return promCollector
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	tokens         middleware.TokenConfig
	limiter        *middleware.Limiter
	userRepo       repository.UserRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	fanout         *notifications.Fanout
	hubs           []wireableHub
	gate           gate.Publisher
	codec          credential.Codec
	featureFlags   *featureflags.Manager

	visitorService      *service.VisitorService
	notificationService *service.NotificationService
	activityService     *service.ActivityService
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*Server)

// WithGate routes barrier commands to p instead of the no-op publisher.
func WithGate(p gate.Publisher) Option {
	return func(s *Server) {
		if p != nil {
			s.gate = p
		}
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	middleware.UseLogger(middleware.NewLogger(cfg.Env))

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; a nil client keeps fanout on this instance.
	cache.InitRedis(cfg.RedisURL)

	pub, err := gate.Connect(GateConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("gate broker connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, cache.GetClient(), WithGate(pub))
}

// GateConfig extracts the MQTT barrier settings from cfg.
func GateConfig(cfg *config.Config) gate.Config {
	return gate.Config{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server requires config and database")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: metricsCollector(),
		tokens:         middleware.TokenConfigFrom(cfg),
		limiter:        middleware.NewLimiter(redisClient, cfg.Env),
		userRepo:       repository.NewUserRepository(db),
		gate:           gate.Nop{},
		codec:          credential.NewCodec(cfg.QRSize),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = notifications.NewHub()
	s.hubs = []wireableHub{s.hub}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.fanout = notifications.NewFanout(s.hub, s.notifier)

	notes := repository.NewNotificationRepository(db)
	router := service.NewRouter(notes, s.fanout)
	s.activityService = service.NewActivityService(repository.NewActivityRepository(db))
	s.notificationService = service.NewNotificationService(notes, s.userRepo, router, cfg.NotificationListLimit)
	s.visitorService = service.NewVisitorService(service.VisitorServiceDeps{
		Visitors:     repository.NewVisitorRepository(db),
		Users:        s.userRepo,
		Router:       router,
		Activity:     s.activityService,
		Gate:         s.gate,
		Flags:        s.featureFlags,
		HistoryLimit: cfg.HistoryListLimit,
	})

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(middleware.TracingMiddleware())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	protected := api.Group("", s.AuthRequired())

	protected.Get("/me", s.GetMe)
	protected.Post("/auth/logout", s.Logout)

	// WebSocket ticket issuance
	protected.Post("/ws/ticket", s.limiter.Handler(middleware.LimitWSTicket), s.IssueWSTicket)

	// Visitor log: guard and resident actions keyed by record id.
	// Specific routes before the generic /:id ones.
	visitorLog := protected.Group("/visitor-log")
	visitorLog.Post("/", s.limiter.Handler(middleware.LimitLogVisit), s.LogArrival)
	visitorLog.Get("/", s.ListVisitors)
	visitorLog.Post("/pre-approve", s.PreApproveVisitor)
	visitorLog.Post("/verify-qr", s.limiter.Handler(middleware.LimitVerifyQR), s.VerifyQRCode)
	visitorLog.Post("/:id/ask-permission", s.AskPermission)
	visitorLog.Post("/:id/permission", s.RespondPermission)
	visitorLog.Post("/:id/exit", s.MarkVisitorExit)
	visitorLog.Get("/:id/qr-code", s.GetQRCode)
	visitorLog.Get("/:id/qr-code-base64", s.GetQRCodeBase64)

	// Society-wide listings and admin review keyed by body visitor_id.
	visitors := protected.Group("/visitors")
	visitors.Post("/pre-approve-admin", s.AdminPreApproveVisitor)
	visitors.Get("/pending", s.GetPendingVisitors)
	visitors.Post("/approve", s.ApproveVisitor)
	visitors.Post("/reject", s.RejectVisitor)
	visitors.Post("/mark-entry", s.MarkEntry)
	visitors.Post("/mark-exit", s.MarkExit)
	visitors.Get("/expected", s.GetExpectedVisitors)
	visitors.Get("/inside", s.GetVisitorsInside)
	visitors.Get("/history/export", s.AdminRequired(), s.ExportVisitorHistory)

	protected.Get("/visitor-logs/history", s.GetVisitorHistory)

	// Notification inbox
	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Post("/", s.AdminRequired(), s.SendNotification)
	notes.Post("/read-all", s.MarkAllNotificationsRead)
	notes.Post("/:id/read", s.MarkNotificationRead)

	protected.Get("/activity-logs", s.GetActivityLogs)

	// Websocket endpoint. The protected group already authenticated the
	// ticket; a second AuthRequired would find it consumed.
	protected.Get("/ws", s.WebsocketHandler())

	// Admin routes
	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Gatehouse Metrics Dashboard",
	}))
}

// NewApp builds a Fiber app with the full middleware chain and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "Gatehouse API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
				slog.String("path", c.Path()), slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Without Redis the instance still serves, with local-only fanout.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"service": "gatehouse",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that the actor is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := tenancy.AsAdmin(actorFrom(c)); err != nil {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewUnauthorizedError("Admin access required"))
		}
		return c.Next()
	}
}

// AuthRequired returns the authentication middleware. It accepts a
// single-use websocket ticket or a Bearer token, then resolves the user
// into a tenant-scoped actor stored in locals.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		isWSPath := strings.HasPrefix(path, "/api/ws") && path != "/api/ws/ticket"

		var userID uint

		// 1. Try WebSocket ticket first (short-lived, single-use)
		if ticket := c.Query("ticket"); ticket != "" && s.redis != nil {
			if id, ok := s.consumeTicket(c.Context(), ticket); ok {
				userID = id
			} else if isWSPath {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
		}

		// 2. Fall back to JWT (Bearer token or query param)
		if userID == 0 {
			tokenString, err := middleware.BearerToken(c.Get("Authorization"))
			// Reject token in query param for WS routes (must use ticket)
			if err != nil && !isWSPath && c.Query("token") != "" {
				tokenString, err = c.Query("token"), nil
			}
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Authorization required"))
			}

			claims, err := middleware.ParseAccessToken(s.tokens, tokenString)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired token"))
			}

			// Check JTI for revocation
			if claims.JTI != "" && s.redis != nil {
				revoked, err := s.redis.Exists(c.Context(), cache.BlacklistKey(claims.JTI)).Result()
				if err == nil && revoked > 0 {
					return models.RespondWithError(c, fiber.StatusUnauthorized,
						models.NewUnauthorizedError("Token has been revoked"))
				}
			}
			c.Locals("tokenJTI", claims.JTI)
			c.Locals("tokenExpiresAt", claims.ExpiresAt)
			userID = claims.UserID
		}

		user, err := s.loadUser(c.Context(), userID)
		if err != nil {
			if models.HasCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("User no longer exists"))
			}
			return respondError(c, err)
		}
		actor, err := tenancy.Resolve(user)
		if err != nil {
			return respondError(c, err)
		}

		c.Locals("userID", userID)
		c.Locals("actor", actor)
		c.Locals("society", actor.Scope().Tenant)
		ctx := middleware.WithRequestValues(c, c.UserContext())
		ctx = service.WithUserAgent(ctx, c.Get(fiber.HeaderUserAgent))
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// consumeTicket redeems a websocket ticket. GETDEL makes it single-use
// across instances.
func (s *Server) consumeTicket(ctx context.Context, ticket string) (uint, bool) {
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// loadUser reads the principal through the user cache.
func (s *Server) loadUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(userID), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					middleware.Logger.Warn("hub wiring failed, delivering locally",
						slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
	}

	middleware.Logger.Info("gatehouse listening",
		slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops the listener, closes every websocket and releases the
// gate, database and Redis connections. It returns every close failure.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http: %w", err))
		}
	}
	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
	}
	if s.gate != nil {
		s.gate.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	middleware.Logger.Info("gatehouse stopped", slog.Int("errors", len(errs)))
	return errors.Join(errs...)
}
