package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"carenote-server/internal/config"
	"carenote-server/internal/domain"
	"carenote-server/internal/extraction"
	"carenote-server/internal/handler"
	"carenote-server/internal/logger"
	"carenote-server/internal/middleware"
	"carenote-server/internal/repository"
	"carenote-server/internal/service"
	"carenote-server/internal/websocket"
	"carenote-server/pkg/cipher"
	"carenote-server/pkg/response"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const serviceName = "carenote-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, serviceName)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(cfg.Postgres)
	if err != nil {
		zlog.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		zlog.Fatal("failed to apply schema", zap.Error(err))
	}

	couch, err := openUserStore(ctx, cfg.CouchDB, zlog)
	if err != nil {
		zlog.Fatal("failed to open user store", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Warn("redis unreachable, rate limiting will fail open", zap.Error(err))
	}

	codec, err := cipher.NewCodec(cfg.Encryption.Secret)
	if err != nil {
		zlog.Fatal("failed to build note codec", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(couch, cfg.CouchDB.Name)
	noteRepo := repository.NewNoteRepository(db)
	stepRepo := repository.NewStepRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	careTeamRepo := repository.NewCareTeamRepository(db)
	tx := repository.NewTransactor(db)

	if cfg.Extraction.APIKey == "" {
		zlog.Warn("GEMINI_API_KEY is not set, every note will yield an empty extraction")
	}
	extractor := extraction.NewGeminiClient(extraction.GeminiConfig{
		BaseURL: cfg.Extraction.BaseURL,
		APIKey:  cfg.Extraction.APIKey,
		Model:   cfg.Extraction.Model,
		Timeout: cfg.Extraction.Timeout,
	}, zlog.Named("extraction"))

	wsManager := websocket.NewManager(websocket.Config{
		MaxConnPerUser: cfg.WebSocket.MaxConnPerUser,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		PingPeriod:     cfg.WebSocket.PingPeriod,
	}, zlog.Named("websocket"))
	go wsManager.Run(ctx)

	noteStore := service.NewNoteStore(noteRepo, codec)
	scheduler := service.NewReminderScheduler(reminderRepo)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration, zlog)
	userService := service.NewUserService(userRepo)
	noteService := service.NewNoteService(userRepo, extractor, noteStore, stepRepo, scheduler, tx, zlog.Named("pipeline"))
	completionService := service.NewCompletionService(reminderRepo, noteStore, zlog)
	reminderService := service.NewReminderService(reminderRepo)
	careTeamService := service.NewCareTeamService(careTeamRepo, userRepo, zlog)

	if cfg.Dispatcher.Enabled {
		dispatcher := service.NewReminderDispatcher(reminderRepo, tx, wsManager, service.DispatcherConfig{
			Interval:  cfg.Dispatcher.Interval,
			BatchSize: cfg.Dispatcher.BatchSize,
		}, zlog.Named("dispatcher"))
		go func() {
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("reminder dispatcher stopped", zap.Error(err))
			}
		}()
	}

	wsManager.SetMessageHandler(handler.NewWebSocketMessageHandler(wsManager, completionService, zlog))

	authHandler := handler.NewAuthHandler(authService, zlog)
	userHandler := handler.NewUserHandler(userService, zlog)
	noteHandler := handler.NewNoteHandler(noteService, zlog)
	reminderHandler := handler.NewReminderHandler(reminderService, completionService, zlog)
	careTeamHandler := handler.NewCareTeamHandler(careTeamService, zlog)
	wsHandler := handler.NewWebSocketHandler(wsManager, authService, cfg.WebSocket, zlog)

	r := mux.NewRouter()

	r.Use(middleware.RecoveryMiddleware(zlog))
	r.Use(middleware.LoggerMiddleware(zlog))
	r.Use(middleware.CORSMiddleware(cfg.CORS))

	api := r.PathPrefix("/api/v1").Subrouter()

	public := api.PathPrefix("/auth").Subrouter()
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(authService))

	if cfg.RateLimit.Enabled {
		limiter := middleware.RateLimitMiddleware(rdb, cfg.RateLimit.RequestsPerMinute, zlog)
		public.Use(limiter)
		protected.Use(limiter)
	}

	public.HandleFunc("/register", authHandler.Register).Methods("POST", "OPTIONS")
	public.HandleFunc("/login", authHandler.Login).Methods("POST", "OPTIONS")
	public.HandleFunc("/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	public.HandleFunc("/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	protected.HandleFunc("/auth/password", authHandler.UpdatePassword).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/care-team/assign", careTeamHandler.Assign).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id:[0-9]+}", noteHandler.Get).Methods("GET", "OPTIONS")

	doctors := protected.PathPrefix("").Subrouter()
	doctors.Use(middleware.RequireRole(domain.RoleDoctor))
	doctors.HandleFunc("/notes", noteHandler.Submit).Methods("POST", "OPTIONS")
	doctors.HandleFunc("/care-team/patients", careTeamHandler.ListPatients).Methods("GET", "OPTIONS")

	patients := protected.PathPrefix("").Subrouter()
	patients.Use(middleware.RequireRole(domain.RolePatient))
	patients.HandleFunc("/reminders", reminderHandler.List).Methods("GET", "OPTIONS")
	patients.HandleFunc("/reminders/complete", reminderHandler.Complete).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)
	r.HandleFunc("/health", healthHandler(db)).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("starting server", zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
		return
	}

	zlog.Info("server stopped gracefully")
}

// openUserStore connects to CouchDB and creates the user database on first
// start.
func openUserStore(ctx context.Context, cfg config.CouchDBConfig, zlog *zap.Logger) (*kivik.Client, error) {
	client, err := kivik.New("couch", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("connect to couchdb: %w", err)
	}

	exists, err := client.DBExists(ctx, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("check database %s: %w", cfg.Name, err)
	}

	if !exists {
		if err := client.CreateDB(ctx, cfg.Name); err != nil {
			return nil, fmt.Errorf("create database %s: %w", cfg.Name, err)
		}
		zlog.Info("created user database", zap.String("name", cfg.Name))
	}

	return client, nil
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		response.Success(w, map[string]string{
			"status":  "healthy",
			"service": serviceName,
		})
	}
}
