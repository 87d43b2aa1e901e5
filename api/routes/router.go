// api/routes/router.go
package routes

import (
	"log/slog"
	"net/http"
	"time"

	"upsell/internal/notifications"
	"upsell/internal/opqueue"
	"upsell/internal/orders"
	"upsell/internal/selections"
	"upsell/internal/shared/config"
	"upsell/internal/shared/database"
	"upsell/internal/shared/middleware"
	"upsell/internal/validation"
	"upsell/pkg/cache"
	"upsell/pkg/clock"
	"upsell/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config *config.Config
	db     *database.DB
	log    *logger.Logger
	clock  clock.Clock

	// Owned for shutdown
	sessions  *selections.Manager
	queue     *opqueue.Queue
	publisher orders.Publisher
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, log *logger.Logger) *Router {
	return &Router{
		config: cfg,
		db:     db,
		log:    log,
		clock:  clock.Real(),
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Orders first, selections submit through them
		orderService := r.setupOrderRoutes(api)

		r.setupSelectionRoutes(api, orderService)
	}
}

// Close stops background work owned by the router
func (r *Router) Close() {
	if r.sessions != nil {
		r.sessions.Close()
	}
	if r.queue != nil {
		r.queue.Close()
	}
	if r.publisher != nil {
		if err := r.publisher.Close(); err != nil {
			r.log.Error("Failed to close order publisher", slog.Any("error", err))
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
				"service":   "upsell-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "upsell-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		body := gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		}
		if r.sessions != nil {
			body["active_sessions"] = r.sessions.Len()
		}
		if r.queue != nil {
			body["order_queue"] = r.queue.Stats()
		}
		c.JSON(http.StatusOK, body)
	})
}

// setupOrderRoutes configures the order pipeline and its polling route
func (r *Router) setupOrderRoutes(rg *gin.RouterGroup) orders.Service {
	qc := r.config.Queue
	r.queue = opqueue.New(opqueue.Config{
		ProcessingDelay: qc.ProcessingDelay,
		BatchSize:       qc.BatchSize,
		BaseBackoff:     qc.BaseBackoff,
		MaxBackoff:      qc.MaxBackoff,
	}, r.clock, r.log)

	r.publisher = orders.NewNoopPublisher()
	if r.config.Kafka.Enabled {
		kc := orders.DefaultKafkaConfig()
		kc.Brokers = r.config.Kafka.Brokers
		kc.Topic = r.config.Kafka.Topic
		kc.ClientID = r.config.Kafka.ClientID

		publisher, err := orders.NewKafkaPublisher(kc, r.log)
		if err != nil {
			r.log.Error("Failed to initialize Kafka order publisher", slog.Any("error", err))
			r.log.Info("Continuing without order events")
		} else {
			r.publisher = publisher
			r.log.Info("Kafka order publisher initialized", slog.String("topic", kc.Topic))
		}
	}

	orderRepo := orders.NewRepository(r.db.GetPostgreSQL())
	orderService := orders.NewService(orderRepo, r.publisher, r.queue, r.redisCache(), orders.ServiceConfig{
		MaxRetries: qc.MaxRetries,
		StatusTTL:  r.config.Redis.SubmissionTTL,
	}, r.clock, r.log)
	orderController := orders.NewController(orderService)

	orders.SetupOrderRoutes(rg, orderController)
	return orderService
}

// setupSelectionRoutes configures per-session selection routes
func (r *Router) setupSelectionRoutes(rg *gin.RouterGroup, submitter selections.Submitter) {
	sc := r.config.Selection
	nc := r.config.Notifications

	storeCfg := selections.DefaultStoreConfig()
	storeCfg.OperationTTL = sc.OperationTTL
	storeCfg.MaxManualAttempts = sc.MaxManualAttempts
	storeCfg.OptimisticGrace = sc.OptimisticGrace
	storeCfg.CacheTTL = sc.CacheTTL

	r.sessions = selections.NewManager(selections.ManagerConfig{
		Store: storeCfg,
		Notifications: notifications.Config{
			BatchDelay:      nc.BatchDelay,
			MaxVisible:      nc.MaxVisible,
			DedupWindow:     nc.DedupWindow,
			MaxGroupSize:    nc.MaxGroupSize,
			DefaultDuration: nc.DefaultDuration,
			HistorySize:     nc.HistorySize,
		},
		Limits: validation.Limits{
			MaxRooms:     sc.MaxRooms,
			MaxExtras:    sc.MaxExtras,
			MaxTotal:     sc.MaxTotal,
			PriceCeiling: sc.PriceCeiling,
		},
		SessionTTL:  r.config.Redis.SessionTTL,
		RoomCatalog: roomCatalog(sc.RoomCatalog),
		Conflicts:   sc.ExtraConflicts,
	}, r.redisCache(), selections.NewSimulatedRemote(sc.RemoteLatency, sc.RemoteFailureRate), r.clock, r.log)

	selectionController := selections.NewController(r.sessions, submitter)
	selections.SetupSelectionRoutes(rg, selectionController, middleware.AgentIdentity(r.config))
}

// redisCache backs session snapshots and submission status, nil without Redis
func (r *Router) redisCache() cache.Service {
	if r.db.GetRedisClient() == nil {
		return nil
	}
	return cache.NewService(r.db.GetRedisClient())
}

// roomCatalog resolves configured type names, which may be display names
// or canonical codes, to canonical room types
func roomCatalog(raw map[string]string) map[string]selections.RoomType {
	if len(raw) == 0 {
		return nil
	}
	resolve := selections.NewRoomTypeNormalizer(nil, nil)
	out := make(map[string]selections.RoomType, len(raw))
	for name, t := range raw {
		out[name] = resolve.Normalize(t)
	}
	return out
}
