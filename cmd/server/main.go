package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"squizy/internal/cache"
	"squizy/internal/config"
	"squizy/internal/repository"
	"squizy/internal/service"
	"squizy/internal/transport/rest"
	"squizy/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a squizy.yaml config file")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDatabase)

	// Redis connection
	redisOpts, err := redisOptions(cfg.RedisURI)
	if err != nil {
		log.Fatal("Invalid REDIS_URI:", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	sessions := cache.NewSessionCache(rdb, cfg.RoomTTL)
	leaderboard := cache.NewLeaderboardCache(rdb, cfg.RoomTTL)
	games := repository.NewGameRepo(db)

	roomSvc := service.NewRoomService(sessions, leaderboard, games)

	wsHub := ws.NewHub(roomSvc)
	defer wsHub.Close()
	log.Println("WebSocket hub started")

	router := rest.NewRouter(&rest.Container{
		Config:      cfg,
		RoomService: roomSvc,
		WSHub:       wsHub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  GET/PUT/PATCH/DELETE /v1/rooms/{code}")
		log.Println("  GET  /v1/rooms/{code}/leaderboard")
		log.Println("  GET  /v1/rooms/{code}/qr")
		log.Println("  GET  /v1/history[/{code}]")
		log.Println("  WS   /v1/ws/rooms/{code}")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		wsHub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped with error: %v", err)
		os.Exit(1)
	}
	log.Println("Server exited")
}

// redisOptions accepts a redis:// URL or a bare host:port
func redisOptions(uri string) (*redis.Options, error) {
	if strings.Contains(uri, "://") {
		return redis.ParseURL(uri)
	}
	return &redis.Options{Addr: uri}, nil
}
