package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/slidenode/internal/config"
	"github.com/local/slidenode/internal/formula"
	"github.com/local/slidenode/internal/images"
	"github.com/local/slidenode/internal/llm"
	logpkg "github.com/local/slidenode/internal/logger"
	"github.com/local/slidenode/internal/metrics"
	"github.com/local/slidenode/internal/pdf"
	"github.com/local/slidenode/internal/pipeline"
	"github.com/local/slidenode/internal/queue"
	"github.com/local/slidenode/internal/storage"
	"github.com/local/slidenode/internal/store"
	"github.com/local/slidenode/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(cfg.Logging, cfg.Axiom)
	defer logpkg.Close()

	metrics.Init()

	ctx := context.Background()

	// Database
	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	// Blob storage
	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init blob storage")
	}

	// Queue
	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	// Pipeline wiring
	var ocr formula.LatexOCR
	if cfg.Formula.OCRURL != "" {
		ocr = formula.NewHTTPOCR(cfg.Formula.OCRURL, cfg.Formula.OCRTimeout)
	} else {
		log.Info().Msg("FORMULA_OCR_URL not set, formula detection disabled")
	}
	pipe := pipeline.New(
		cfg.Pipeline,
		pdf.NewExtractor(cfg.Pipeline.ChunkSizeTokens),
		llm.New(cfg.LLM),
		images.New(blobs, formula.NewDetector(ocr)),
	)

	// Worker
	wk := worker.New(worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		BlockTimeout: cfg.Queue.BlockTimeout,
		TaskTimeout:  cfg.Pipeline.TaskTimeout,
	}, rq, db, blobs, pipe)
	wk.Start()

	// Ops endpoints
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		hctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rq.Ping(hctx); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	port := os.Getenv("PORT")
	if port == "" { port = "8080" }
	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	wk.Stop(shutdownCtx)
	_ = srv.Shutdown(shutdownCtx)
	log.Info().Msg("shutdown complete")
}
