package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkotova/rewritepipe/internal/ai"
	"github.com/dkotova/rewritepipe/internal/api"
	"github.com/dkotova/rewritepipe/internal/cms"
	"github.com/dkotova/rewritepipe/internal/config"
	"github.com/dkotova/rewritepipe/internal/extract"
	"github.com/dkotova/rewritepipe/internal/pipeline"
	"github.com/dkotova/rewritepipe/internal/queue"
	"github.com/dkotova/rewritepipe/internal/worker"
)

func main() {
	cfg := config.Load()

	q, err := queue.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis")

	db, err := cms.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer db.Close()
	store := cms.NewStore(db, cfg.CMSBaseURL)

	extractor, err := extract.NewClient(&extract.Options{
		Stealth:     cfg.ExtractStealth,
		Proxy:       cfg.ExtractProxy,
		BrowserPath: cfg.ExtractBrowserPath,
	})
	if err != nil {
		log.Fatalf("Failed to start extraction client: %v", err)
	}
	defer extractor.Close()

	generator := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)

	pipe := pipeline.New(pipeline.Config{
		Tasks:        q,
		Extractor:    extractor,
		Items:        store,
		Generator:    generator,
		Documents:    store,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(q, pipe.Run, cfg.WorkerCount)
	pool.Start(ctx)

	handler := api.NewHandler(q)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	pool.Stop()
	log.Println("Server stopped")
}
