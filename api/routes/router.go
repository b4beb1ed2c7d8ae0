// api/routes/router.go
package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"waitline/docs"
	"waitline/internal/events"
	"waitline/internal/notifications"
	"waitline/internal/participation"
	"waitline/internal/shared/config"
	"waitline/internal/shared/database"
	"waitline/internal/shared/middleware"
	"waitline/internal/waitlist"
	"waitline/pkg/cache"
	"waitline/pkg/logger"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	log    *logger.Logger

	waitlistService waitlist.Service
	jobs            *waitlist.JobProcessor
	kafka           *notifications.KafkaNotifier
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB) *Router {
	return &Router{
		config: cfg,
		db:     db,
		log:    logger.GetDefault(),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	docs.SwaggerInfo.BasePath = r.config.GetAPIBasePath()
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		eventRepo := events.NewRepository(r.db.GetPostgreSQL())

		// Setup event routes
		r.setupEventRoutes(api, eventRepo)

		// Setup waitlist routes
		r.setupWaitlistRoutes(api, eventRepo)
	}
}

// StartJobs starts the waitlist expiry and reminder loops. SetupRoutes must
// have been called first.
func (r *Router) StartJobs(ctx context.Context) {
	if r.jobs != nil {
		r.jobs.Start(ctx)
	}
}

// Close stops background jobs and flushes the notification producer
func (r *Router) Close() {
	if r.jobs != nil {
		r.jobs.Stop()
	}
	if r.kafka != nil {
		if err := r.kafka.Close(); err != nil {
			r.log.Error("Failed to close Kafka notifier", slog.String("error", err.Error()))
		}
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		// Perform health checks
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "waitline",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "waitline",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		status := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		}
		if r.jobs != nil {
			status["jobs"] = r.jobs.GetJobStatus()
		}
		c.JSON(http.StatusOK, status)
	})
}

// setupEventRoutes configures event management routes
func (r *Router) setupEventRoutes(rg *gin.RouterGroup, eventRepo events.Repository) {
	eventService := events.NewService(eventRepo)
	eventController := events.NewController(eventService)

	events.SetupEventRoutes(rg, eventController,
		middleware.JWTAuthWithConfig(r.config),
		middleware.RequireRoles(middleware.RoleAdmin, middleware.RoleOrganizer),
	)
}

// setupWaitlistRoutes builds the admission engine and its background jobs
func (r *Router) setupWaitlistRoutes(rg *gin.RouterGroup, eventRepo events.Repository) {
	wcfg := r.config.Waitlist
	pg := r.db.GetPostgreSQL()
	store := waitlist.NewRepository(pg)

	var cacheService cache.Service
	if rdb := r.db.GetRedis(); rdb != nil {
		cacheService = cache.NewService(rdb)
	}

	service := waitlist.NewService(waitlist.Dependencies{
		Store:        store,
		Events:       eventRepo,
		Participants: participation.NewRepository(pg),
		Notifier:     r.newNotifier(),
		Locker:       r.newLocker(),
		Cache:        cacheService,
		Logger:       r.log,
	}, &waitlist.ServiceConfig{
		DefaultResponseDeadlineHours: wcfg.DefaultResponseDeadlineHours,
		NotificationTimeout:          wcfg.NotificationTimeout,
		MaxWaitlistSize:              wcfg.MaxSize,
		RetainRemoved:                wcfg.RetainRemoved,
	})
	r.waitlistService = service

	r.jobs = waitlist.NewJobProcessor(service, &waitlist.JobConfig{
		ExpiryCheckInterval: wcfg.ExpiryCheckInterval,
		ReminderInterval:    wcfg.ReminderInterval,
		ReminderWindow:      wcfg.ReminderWindow,
		RefillOnExpiry:      wcfg.RefillOnExpiry,
	})

	queries := waitlist.NewQueries(store, cacheService, wcfg.StatsCacheTTL)
	controller := waitlist.NewController(service, queries, waitlist.DefaultAuthorizer())

	waitlist.SetupWaitlistRoutes(rg, controller, middleware.JWTAuthWithConfig(r.config))
}

// newNotifier publishes to Kafka when brokers are configured and falls back
// to logging otherwise
func (r *Router) newNotifier() waitlist.Notifier {
	kcfg := r.config.Kafka
	if len(kcfg.Brokers) == 0 {
		r.log.Info("No Kafka brokers configured, waitlist notifications will be logged only")
		return notifications.NewLogNotifier(r.log)
	}

	producerConfig := notifications.DefaultKafkaProducerConfig()
	producerConfig.Brokers = kcfg.Brokers
	producerConfig.NotificationTopic = kcfg.NotificationTopic
	producerConfig.RetryMax = kcfg.RetryMax
	producerConfig.TimeoutMs = kcfg.TimeoutMs

	notifier, err := notifications.NewKafkaNotifier(producerConfig)
	if err != nil {
		r.log.Error("Failed to connect Kafka notifier, falling back to log notifier",
			slog.String("error", err.Error()),
			slog.Any("brokers", kcfg.Brokers),
		)
		return notifications.NewLogNotifier(r.log)
	}
	r.kafka = notifier
	return notifier
}

func (r *Router) newLocker() waitlist.Locker {
	wcfg := r.config.Waitlist
	if wcfg.LockBackend != "redis" {
		return waitlist.NewMutexLocker()
	}
	rdb := r.db.GetRedis()
	if rdb == nil {
		r.log.Warn("Redis lock backend requested but Redis is unavailable, using in-process locks")
		return waitlist.NewMutexLocker()
	}
	return waitlist.NewRedisLocker(rdb, &waitlist.RedisLockerConfig{
		TTL:          wcfg.LockTTL,
		WaitTimeout:  wcfg.LockWaitTimeout,
		RetryBackoff: waitlist.DefaultRedisLockerConfig().RetryBackoff,
	})
}
