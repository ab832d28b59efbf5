package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dcode-github/agrirent/backend/cache"
	"github.com/dcode-github/agrirent/backend/config"
	"github.com/dcode-github/agrirent/backend/middleware"
	"github.com/dcode-github/agrirent/backend/realtime"
	"github.com/dcode-github/agrirent/backend/repository"
	"github.com/dcode-github/agrirent/backend/routes"
	"github.com/dcode-github/agrirent/backend/services"
	"github.com/dcode-github/agrirent/backend/storage"
	"github.com/dcode-github/agrirent/backend/utils"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func setupRouter(d routes.Deps) *mux.Router {
	router := mux.NewRouter()
	routes.Routes(router, d)
	return router
}

func buildDeps(cfg config.Config, store *repository.Store, files storage.Bucket, redisClient *redis.Client) routes.Deps {
	var (
		locker   services.Locker = services.NewLocalLocker()
		listings *cache.ListingCache
		broker   realtime.Broker
	)
	if redisClient != nil {
		locker = services.NewRedisLocker(redisClient, cfg.LockTTL)
		listings = cache.NewListingCache(redisClient, cfg.CacheTTL)
		broker = realtime.NewRedisBroker(redisClient)
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	hub := realtime.NewHub(broker)
	rentals := services.NewRentalService(store, locker)

	return routes.Deps{
		Auth:      services.NewAuthService(store, rentals, tokens),
		Machines:  services.NewMachineService(store),
		Rentals:   rentals,
		Chat:      services.NewChatService(store, hub),
		Analytics: services.NewAnalyticsService(store),
		Prices:    services.NewPriceService(store, cfg.MLServiceURL, cfg.MLTimeout),
		Listings:  listings,
		Uploads:   storage.NewImageStore(files),
		Hub:       hub,
		Tokens:    tokens,
		Origins:   cfg.AllowedOrigins,
	}
}

func main() {
	cfg := config.Load()

	client, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer config.CloseDBConnection(client)

	collections := config.InitCollections(client, cfg)
	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := config.EnsureIndexes(indexCtx, collections); err != nil {
		log.Printf("Failed to create indexes: %v", err)
	}
	cancelIndexes()

	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	files, err := storage.NewGridFSBucket(client.Database(cfg.DBName), cfg.UploadBucket)
	if err != nil {
		log.Fatalf("Failed to open upload bucket: %v", err)
	}
	deps := buildDeps(cfg, repository.NewMongoStore(collections), files, redisClient)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go func() {
		if err := deps.Hub.Run(hubCtx); err != nil {
			log.Printf("Chat relay stopped: %v", err)
		}
	}()

	router := setupRouter(deps)

	corsOptions := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := middleware.Recoverer(corsOptions.Handler(router))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
		// uploads and ML predictions can take longer than a plain JSON call
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   cfg.MLTimeout + 10*time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down server...")
	stopHub()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
