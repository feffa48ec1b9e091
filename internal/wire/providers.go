package wire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"slackclone/internal/chat/handler"
	"slackclone/internal/chat/service"
	"slackclone/internal/common"
	"slackclone/internal/config"
	"slackclone/internal/dbmongo"
	"slackclone/internal/dbsql"
	"slackclone/internal/health"
	"slackclone/internal/media"
	"slackclone/internal/metrics"
	"slackclone/internal/realtime"
)

// Application is everything the chat service runs.
type Application struct {
	Config   *config.Config
	DB       *gorm.DB
	Realtime *Realtime
	Hub      *realtime.Hub
	Health   *health.Checker
	Metrics  *metrics.Metrics
	Handler  *handler.ChatHandler
	Router   *mux.Router
}

// Realtime is the event fan-out and, with the redis driver, the relay that
// feeds this instance's WebSocket hub.
type Realtime struct {
	Fanout *realtime.Fanout
	Relay  *realtime.RedisRelay
}

func ProvideHub() *realtime.Hub {
	return realtime.NewHub(0)
}

// ProvideRealtime registers one sink per configured realtime driver. With
// redis enabled the local hub is fed by the relay instead of directly, so
// every instance delivers each event to its WebSocket clients exactly once.
func ProvideRealtime(cfg *config.Config, hub *realtime.Hub, m *metrics.Metrics) (*Realtime, func(), error) {
	fanout := realtime.NewFanout(cfg.Realtime.Workers, cfg.Realtime.QueueSize)
	fanout.SetObserver(m.ObserveDelivery)

	var closers []func()
	cleanup := func() {
		fanout.Shutdown()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var relay *realtime.RedisRelay
	for _, driver := range cfg.RealtimeDrivers() {
		switch driver {
		case "pusher":
			fanout.Subscribe(realtime.NewPusherBroadcaster(realtime.NewPusherClient(cfg.Pusher)), false)
		case "redis":
			client, err := realtime.NewRedisClient(cfg.Redis)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() {
				if err := client.Close(); err != nil {
					log.Printf("Failed to close redis: %v", err)
				}
			})
			fanout.Subscribe(realtime.NewRedisBroadcaster(client), false)
			relay = realtime.NewRedisRelay(client, hub)
		case "kafka":
			sink, err := realtime.NewKafkaSink(cfg.KafkaBrokers(), cfg.Kafka.Topic)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			closers = append(closers, func() {
				if err := sink.Close(); err != nil {
					log.Printf("Failed to close kafka producer: %v", err)
				}
			})
			fanout.Subscribe(sink, true)
		}
	}

	if cfg.HasRealtimeDriver("websocket") && relay == nil {
		fanout.Subscribe(hub, false)
	}

	log.Printf("✅ Realtime sinks: %v", fanout.Sinks())
	return &Realtime{Fanout: fanout, Relay: relay}, cleanup, nil
}

// ProvideBroadcaster falls back to realtime.Noop when no sink is registered.
func ProvideBroadcaster(rt *Realtime) realtime.Broadcaster {
	if len(rt.Fanout.Sinks()) == 0 {
		log.Println("No realtime driver configured, events will not be delivered")
		return realtime.Noop{}
	}
	return rt.Fanout
}

func ProvideHandler(channels service.ChannelService, messages service.MessageService,
	reactions service.ReactionService, m *metrics.Metrics) *handler.ChatHandler {

	h := handler.NewChatHandler(channels, messages, reactions)
	h.SetOutcomeObserver(m.ObserveCreate)
	return h
}

// ProvideMedia connects GridFS when attachments are enabled; otherwise it
// returns nil and the upload routes are not mounted.
func ProvideMedia(cfg *config.Config, checker *health.Checker) (*media.HTTPServer, func(), error) {
	if !cfg.MongoDB.Enabled {
		return nil, func() {}, nil
	}

	limit, err := cfg.UploadLimit()
	if err != nil {
		return nil, nil, err
	}

	client, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	checker.Add("mongo", client.Ping)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(ctx); err != nil {
			log.Printf("Failed to close MongoDB: %v", err)
		}
	}
	return media.NewHTTPServer(dbmongo.NewMediaStorage(client), limit, cfg.Upload.BaseURL), cleanup, nil
}

func ProvideHealth(db *gorm.DB) *health.Checker {
	checker := health.NewChecker()
	checker.Add("database", func(ctx context.Context) error {
		return dbsql.Ping(ctx, db)
	})
	return checker
}

// ProvideRouter assembles the HTTP surface. Middleware runs outermost first:
// logging, panic recovery, CORS, rate limiting.
func ProvideRouter(cfg *config.Config, h *handler.ChatHandler, hub *realtime.Hub, checker *health.Checker,
	m *metrics.Metrics, uploads *media.HTTPServer) (*mux.Router, error) {

	router := mux.NewRouter()
	router.Use(common.LoggingMiddleware(m.ObserveRequest, routeTemplate))
	router.Use(common.RecoverMiddleware)
	router.Use(common.CORSMiddleware(cfg.Server.AllowOrigin))
	if cfg.RateLimit.Enabled {
		clientKey, err := common.TrustedClientKey(cfg.TrustedProxies())
		if err != nil {
			return nil, fmt.Errorf("failed to configure rate limiting: %w", err)
		}
		pool := common.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst).WithIdleTTL(cfg.RateLimit.IdleTTL)
		router.Use(common.RateLimitMiddleware(pool, clientKey))
	}

	router.Handle("/api/health", checker).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)
	if uploads != nil {
		uploads.RegisterRoutes(router)
	}
	h.RegisterRoutes(router)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.WriteError(w, http.StatusNotFound, "Not found")
	})
	return router, nil
}

// routeTemplate labels metrics by route pattern rather than raw path.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
