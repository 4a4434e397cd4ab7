package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zawix/messages/internal/config"
	"github.com/zawix/messages/internal/notify"
	"github.com/zawix/messages/internal/repository"
	"github.com/zawix/messages/internal/service"
	"github.com/zawix/messages/internal/store"
	"github.com/zawix/messages/internal/store/memstore"
	"github.com/zawix/messages/internal/store/mongostore"
	"github.com/zawix/messages/internal/store/pgstore"
	"github.com/zawix/messages/internal/transport/http/handlers"
	"github.com/zawix/messages/internal/transport/http/middleware"
	"github.com/zawix/messages/internal/transport/ws"
)

const reconcileInterval = time.Minute

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Document store
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()
	log.Printf("Connected to %s store", cfg.StoreBackend)

	// Repositories
	userRepo := repository.NewUserRepo(st)
	messageRepo := repository.NewMessageRepo(st)
	friendRepo := repository.NewFriendRepo(st)

	// Services
	authService := service.NewAuthService(userRepo, messageRepo, friendRepo, cfg.JWTSecret)
	friendService := service.NewFriendService(friendRepo, userRepo)
	messageService := service.NewMessageService(messageRepo, userRepo, friendService, cfg.FriendsOnly)

	// WebSocket hub and background notification watchers
	hub := ws.NewHub()
	go hub.Run()
	watchers := notify.NewManager(st, ws.NewHubNotifier(hub), cfg.NotifyTrackByID)
	defer watchers.StopAll()

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, watchers, ctx)
	userHandler := handlers.NewUserHandler(authService)
	friendHandler := handlers.NewFriendHandler(friendService)
	messageHandler := handlers.NewMessageHandler(messageService)

	// Middleware
	auth := middleware.Auth(cfg.JWTSecret)
	authLimiter, apiLimiter := rateLimiters(cfg)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.Handle("POST /api/v1/auth/register", authLimiter.Limit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", authLimiter.Limit(http.HandlerFunc(authHandler.Login)))

	// Protected - Auth
	mux.Handle("POST /api/v1/auth/logout", auth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /api/v1/auth/password", auth(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("DELETE /api/v1/auth/account", auth(http.HandlerFunc(authHandler.DeleteAccount)))

	// Protected - Users
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(userHandler.List)))

	// Protected - Friends
	mux.Handle("POST /api/v1/friends/requests", auth(http.HandlerFunc(friendHandler.SendRequest)))
	mux.Handle("GET /api/v1/friends/requests/incoming", auth(http.HandlerFunc(friendHandler.ListIncomingRequests)))
	mux.Handle("GET /api/v1/friends/requests/outgoing", auth(http.HandlerFunc(friendHandler.ListOutgoingRequests)))
	mux.Handle("POST /api/v1/friends/requests/{id}/accept", auth(http.HandlerFunc(friendHandler.AcceptRequest)))
	mux.Handle("POST /api/v1/friends/requests/{id}/reject", auth(http.HandlerFunc(friendHandler.RejectRequest)))
	mux.Handle("DELETE /api/v1/friends/requests/{id}", auth(http.HandlerFunc(friendHandler.CancelRequest)))
	mux.Handle("GET /api/v1/friends", auth(http.HandlerFunc(friendHandler.ListFriends)))
	mux.Handle("DELETE /api/v1/friends/{username}", auth(http.HandlerFunc(friendHandler.RemoveFriend)))

	// Protected - Messages
	mux.Handle("POST /api/v1/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/v1/messages/{username}", auth(http.HandlerFunc(messageHandler.Conversation)))
	mux.Handle("PATCH /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Edit)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Delete)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, st, cfg.JWTSecret, cfg.NotifyTrackByID))

	// Static frontend
	mux.Handle("/", handlers.NewStaticHandler(cfg.StaticDir))

	// Periodic repair of half-applied friend request accepts
	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := friendService.Reconcile(ctx); err != nil {
				log.Printf("reconcile: %v", err)
			}
		}
	}()

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, middleware.CORS(apiLimiter.Limit(mux))))
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		return pgstore.New(ctx, dsn)
	case "mongo":
		return mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func rateLimiters(cfg *config.Config) (*middleware.RateLimiter, *middleware.RateLimiter) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	return middleware.NewAuthRateLimiter(client), middleware.NewAPIRateLimiter(client)
}
