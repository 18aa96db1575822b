package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/teamtrack/apiserver/config"
	"github.com/teamtrack/apiserver/internal/db"
	"github.com/teamtrack/apiserver/internal/handlers"
	"github.com/teamtrack/apiserver/internal/mq"
	"github.com/teamtrack/apiserver/internal/notify"
	"github.com/teamtrack/apiserver/internal/services"
	"github.com/teamtrack/apiserver/internal/storage"
	"github.com/teamtrack/apiserver/internal/store"
)

// Server wraps the HTTP server, router and shared infrastructure handles.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a fully wired Server: database, broker, object storage,
// repositories, services and routes. Broker and storage are optional; when
// unconfigured the server runs with notifications and attachments disabled.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker := openBroker(ctx, cfg)
	notifier := notify.Notifier(notify.Nop{})
	if broker != nil {
		notifier = notify.NewPublisher(broker, cfg.Notify.Channel)
	}

	objects := openStorage(ctx, cfg)

	userRepo := store.NewUserRepository(dbConn)
	adminRepo := store.NewAdminRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	moduleRepo := store.NewModuleRepository(dbConn)
	updateRepo := store.NewDailyUpdateRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)
	tokenRepo := store.NewRefreshTokenRepository(dbConn)

	statsService := services.NewStatsService(statsRepo)
	pipeline := services.NewProgressPipeline(projectRepo, moduleRepo, updateRepo, statsService)
	projectService := services.NewProjectService(projectRepo, moduleRepo, userRepo, pipeline)
	moduleService := services.NewModuleService(projectRepo, moduleRepo, userRepo, pipeline)
	updateService := services.NewDailyUpdateService(projectRepo, moduleRepo, updateRepo, objects, pipeline)
	userService := services.NewUserService(userRepo, notifier)
	authService := services.NewAuthService(
		userRepo,
		adminRepo,
		tokenRepo,
		cfg.Admin,
		time.Duration(cfg.JWT.RefreshTTLHours)*time.Hour,
	)

	if err := authService.EnsureAdmin(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	// Hourly sweep of expired refresh tokens.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authService.PurgeExpired(ctx)
			}
		}
	}()

	accessTTL := time.Duration(cfg.JWT.AccessTTLHours) * time.Hour
	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, userService, authService, jwtSecret, accessTTL)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userService, authMiddleware)
		})
		r.Route("/projects", func(r chi.Router) {
			handlers.ProjectRouter(r, projectService, authMiddleware)
		})
		r.Route("/modules", func(r chi.Router) {
			handlers.ModuleRouter(r, moduleService, authMiddleware)
		})
		r.Route("/daily-updates", func(r chi.Router) {
			handlers.DailyUpdateRouter(r, updateService, authMiddleware)
		})
		r.Route("/stats", func(r chi.Router) {
			handlers.StatsRouter(r, statsService, authMiddleware)
		})
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// openBroker selects the notification broker backend. A missing or failing
// broker downgrades to no notifications instead of refusing to start.
func openBroker(ctx context.Context, cfg config.Config) *mq.MQ {
	switch cfg.Notify.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			log.Printf("server: rabbitmq unavailable, notifications disabled: %v", err)
			return nil
		}
		return mq.New(client)
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			log.Printf("server: pubsub unavailable, notifications disabled: %v", err)
			return nil
		}
		return mq.New(client)
	default:
		log.Printf("server: unknown notify backend %q, notifications disabled", cfg.Notify.Backend)
		return nil
	}
}

// openStorage selects the attachment storage backend. A missing or failing
// backend downgrades to attachments disabled.
func openStorage(ctx context.Context, cfg config.Config) *storage.Storage {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			log.Printf("server: minio unavailable, attachments disabled: %v", err)
			return nil
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			log.Printf("server: gcs unavailable, attachments disabled: %v", err)
			return nil
		}
		backend = client
	default:
		log.Printf("server: unknown storage backend %q, attachments disabled", cfg.Storage.Backend)
		return nil
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		log.Printf("server: ensure bucket failed, attachments disabled: %v", err)
		return nil
	}
	log.Printf("server: attachments stored in bucket %q", wrapped.Bucket())
	return wrapped
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
