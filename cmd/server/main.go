package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"

	"heartline/client/internal/auth"
	"heartline/client/internal/config"
	"heartline/client/internal/handlers"
	"heartline/client/internal/middleware"
	"heartline/client/internal/realtime"
	"heartline/client/internal/router"
	"heartline/client/internal/store"
)

func main() {
	cfg := config.Load()

	authService, err := auth.NewService(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		log.Fatalf("failed to init auth: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		cancel()
		defer redisClient.Close()
	}

	st := store.New()
	seedDemoData(st)

	hub := realtime.NewHub(redisClient)
	api := handlers.NewAPI(st, authService, hub)
	limiter := middleware.NewRateLimiter(60, time.Minute)
	rt := router.New(api, authService, limiter, cfg.FrontendOrigin, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rt,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func seedDemoData(st *store.Store) {
	alice, err := st.CreateUser("alice@example.com", "alice", "password123")
	if err != nil {
		log.Fatalf("seed users: %v", err)
	}
	if _, err := st.CreateUser("bob@example.com", "bob", "password123"); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	st.CreatePost(alice.ID, "Welcome", "Say hello in the lobby.")
	st.EnsureRoom("lobby", "Lobby")
}
