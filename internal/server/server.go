package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nimbusnote/authserver/config"
	"github.com/nimbusnote/authserver/internal/db"
	"github.com/nimbusnote/authserver/internal/handlers"
	"github.com/nimbusnote/authserver/internal/identity"
	"github.com/nimbusnote/authserver/internal/mq"
	"github.com/nimbusnote/authserver/internal/notify"
	"github.com/nimbusnote/authserver/internal/rate"
	"github.com/nimbusnote/authserver/internal/services"
	"github.com/nimbusnote/authserver/internal/sessions"
	"github.com/nimbusnote/authserver/internal/store"
	"github.com/nimbusnote/authserver/internal/token"
)

const notifyBufferSize = 256

// Server wraps the HTTP server, the router, and the owned resources that
// must be released on shutdown.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	queue      *mq.MQ
	notifier   *notify.Notifier
}

// New constructs a fully wired Server from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("JWT_SECRET and JWT_REFRESH_TOKEN_SECRET are required")
	}
	if cfg.Reset.Secret == "" {
		return nil, errors.New("HASH_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	queue, err := openQueue(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		_ = redisClient.Close()
		return nil, err
	}
	notifier := notify.New(queue, cfg.MQ.Queue, notifyBufferSize)

	codec := token.New(token.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		ResetSecret:   []byte(cfg.Reset.Secret),
		ResetTTL:      cfg.Reset.TTL,
	})

	limiter := rate.New(redisClient, rate.Config{
		MaxAttempts: cfg.Login.MaxAttempts,
		Cooldown:    cfg.Login.Cooldown,
	})

	authService := services.NewAuthService(services.AuthDeps{
		Users:       store.NewUserRepository(dbConn),
		Sessions:    sessions.NewStore(store.NewSessionRepository(dbConn)),
		Tickets:     store.NewTicketRepository(dbConn),
		Resets:      store.NewResetStore(dbConn),
		Codec:       codec,
		Limiter:     limiter,
		External:    identity.NewGoogleVerifier(""),
		Notifier:    notifier,
		FrontendURL: cfg.FrontendURL,
	})

	secureCookies := cfg.Env != "dev"

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/health", handlers.Health)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, codec, secureCookies)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      redisClient,
		queue:      queue,
		notifier:   notifier,
	}, nil
}

func openQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub backend: %w", err)
		}
		return mq.New(backend), nil
	case "rabbitmq", "":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq backend: %w", err)
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests, flushes the notifier, and closes the
// owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.notifier.Close()
	if s.queue != nil {
		if cerr := s.queue.Close(); cerr != nil {
			log.Printf("server: close queue: %v", cerr)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
