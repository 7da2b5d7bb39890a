package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/yourusername/friendchat-service/internal/config"
	"github.com/yourusername/friendchat-service/internal/handlers"
	"github.com/yourusername/friendchat-service/internal/presence"
	"github.com/yourusername/friendchat-service/internal/repository"
	"github.com/yourusername/friendchat-service/internal/scheduler"
	"github.com/yourusername/friendchat-service/internal/services"
	"github.com/yourusername/friendchat-service/internal/store"
	"github.com/yourusername/friendchat-service/pkg/logger"
)

const (
	tokenCleanupInterval = 5 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Log.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("Invalid configuration")
	}
	logger.InitLogger(cfg.LogLevel)

	ctx := context.Background()

	var fb *config.Firebase
	if cfg.NeedsFirebase() {
		fb, err = config.InitFirebase(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to initialize Firebase")
		}
	}

	docs, err := openStore(ctx, cfg, fb)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to open document store")
	}
	// owns the Firestore client when that backend is selected
	defer docs.Close()

	var presenceStore presence.Store = presence.NewMemoryStore()
	if cfg.PresenceBackend == config.PresenceRTDB {
		presenceStore = presence.NewRTDBStore(fb.Database)
	}

	var verifier services.IdentityVerifier
	switch cfg.AuthMode {
	case config.AuthFirebase:
		verifier = services.NewFirebaseVerifier(fb.Auth)
	default:
		verifier = services.NewJWTVerifier(cfg.JWTSecret)
	}
	identityCache := services.NewIdentityCache(verifier, tokenCleanupInterval)
	defer identityCache.Close()

	var pusher services.Pusher = services.NoopPusher{}
	if cfg.PushEnabled {
		pusher = services.NewFCMPusher(fb.Messaging)
	}

	// Repositories
	userRepo := repository.NewUserRepository(docs)
	friendRepo := repository.NewFriendRepository(docs)
	chatRepo := repository.NewChatRepository(docs)
	notificationRepo := repository.NewNotificationRepository(docs)

	// Services
	notificationService := services.NewNotificationService(docs, notificationRepo, userRepo, pusher)
	presenceService := services.NewPresenceService(presenceStore, presence.NewDisconnectRegistry(presenceStore), cfg.PresenceStaleAfter)
	svc := handlers.Services{
		Verifier:      identityCache,
		Directory:     services.NewDirectoryService(userRepo),
		Friends:       services.NewFriendService(docs, friendRepo, notificationService),
		Chats:         services.NewChatService(docs, chatRepo),
		Notifications: notificationService,
		Presence:      presenceService,
	}

	// Records left online by a previous process
	if _, err := presenceService.SweepStale(ctx); err != nil {
		logger.Log.WithError(err).Warn("Startup presence sweep failed")
	}
	sweep, err := scheduler.StartPresenceSweep(cfg.PresenceSweepSchedule, presenceService)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to schedule presence sweep")
	}
	defer sweep.Stop()

	router := handlers.NewRouter(svc, cfg.AllowedOrigins)
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: c.Handler(router),
	}

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config, fb *config.Firebase) (store.DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		return store.NewFirestoreStore(fb.Firestore), nil
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.ConnectMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	}
	logger.Log.Warn("Using in-memory document store, data is lost on restart")
	return store.NewMemoryStore(), nil
}
