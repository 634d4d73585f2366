// cmd/recoworker/main.go
// Entry point for the recommendation worker: hosts the nightly batch,
// the read-facing API surface and the metrics endpoint.

package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventlyhq/evently-backend/internal/common/database"
	"github.com/eventlyhq/evently-backend/internal/config"
	"github.com/eventlyhq/evently-backend/internal/recommendation"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	runOnce := flag.Bool("once", false, "run a single batch compute and exit (cron mode)")
	flag.Parse()

	log.Println("Starting Evently recommendation worker")

	// 1. Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found (%v), using environment variables", err)
	}

	// 2. Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: ", err)
	}

	// 3. Connect to PostgreSQL
	db, err := database.NewPostgresDBFromURL(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL: ", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// 4. Connect to Redis (optional; the read path degrades to DB-only)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable (%v), continuing without cache", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			log.Println("Connected to Redis")
		}
	}

	// 5. Build the engine
	recoConfig := recommendation.DefaultRecoConfig()
	recoConfig.Weights = recommendation.Weights{
		Category:   cfg.WeightCategory,
		Price:      cfg.WeightPrice,
		Area:       cfg.WeightArea,
		Recency:    cfg.WeightRecency,
		Popularity: cfg.WeightPopularity,
	}
	recoConfig.MaxRecosPerUser = cfg.MaxRecosPerUser
	recoConfig.MinScore = cfg.MinScore
	recoConfig.ColdStartMinBookings = cfg.ColdStartMinBookings
	recoConfig.SimilarUsersLimit = cfg.SimilarUsersLimit
	recoConfig.CandidatePoolSize = cfg.CandidatePoolSize
	recoConfig.ChunkSize = cfg.BatchChunkSize
	recoConfig.MFProvider = cfg.MFProvider

	repo := recommendation.NewPostgresRepository(db)
	cache := recommendation.NewRecoCache(redisClient, cfg.RecoCacheTTL)

	engine, err := recommendation.NewEngine(repo, cache, recoConfig)
	if err != nil {
		log.Fatal("Failed to build recommendation engine: ", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cron mode: one batch, then exit with a status code operators can alert on.
	if *runOnce {
		result, err := engine.RunBatchCompute(ctx, nil)
		if err != nil {
			log.Fatal("Batch compute failed: ", err)
		}
		if len(result.Errors) > 0 {
			log.Printf("Batch finished with %d per-user errors", len(result.Errors))
		}
		return
	}

	// 6. HTTP surface
	router := mux.NewRouter()
	handler := recommendation.NewHandler(engine)
	recommendation.RegisterRoutes(router, handler)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// 7. Nightly schedule
	if cfg.BatchEnabled {
		scheduler := recommendation.NewScheduler(engine, cfg.BatchHour, cfg.BatchMinute)
		scheduler.Start(ctx)
		log.Printf("Nightly batch scheduled at %02d:%02d", cfg.BatchHour, cfg.BatchMinute)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	// 8. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
