// Package worker consumes generation tasks from the queue and drives the
// pipeline, one goroutine per consumer.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/local/slidenode/internal/metrics"
	"github.com/local/slidenode/internal/models"
	"github.com/local/slidenode/internal/pipeline"
	"github.com/local/slidenode/internal/queue"
	"github.com/local/slidenode/internal/storage"
	"github.com/local/slidenode/internal/store"
)

// Task is the queue payload enqueued by the upload surface.
type Task struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
}

// Config controls worker parallelism and per-task limits.
type Config struct {
	Concurrency  int
	BlockTimeout time.Duration
	TaskTimeout  time.Duration
}

// Worker pulls tasks, loads the source blob and runs the pipeline.
type Worker struct {
	cfg   Config
	queue *queue.RedisQueue
	db    *gorm.DB
	blobs storage.Store
	pipe  *pipeline.Pipeline

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config, q *queue.RedisQueue, db *gorm.DB, blobs storage.Store, pipe *pipeline.Pipeline) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &Worker{cfg: cfg, queue: q, db: db, blobs: blobs, pipe: pipe, stop: make(chan struct{})}
}

// Start launches the consumer loops and a queue depth reporter.
func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		consumer := fmt.Sprintf("worker-%d", i+1)
		w.wg.Add(1)
		go w.loop(consumer)
	}
	w.wg.Add(1)
	go w.reportDepths()
	log.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker started")
}

// Stop signals the loops and waits for in-flight tasks to finish.
func (w *Worker) Stop(ctx context.Context) {
	close(w.stop)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("worker stop timed out")
	}
}

func (w *Worker) loop(consumer string) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		ctx := context.Background()
		msgID, payload, err := w.queue.Dequeue(ctx, consumer, w.cfg.BlockTimeout)
		if err != nil {
			log.Error().Err(err).Str("consumer", consumer).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if msgID == "" {
			continue
		}

		w.handle(ctx, consumer, msgID, payload)
	}
}

func (w *Worker) handle(ctx context.Context, consumer, msgID string, payload []byte) {
	defer func() {
		if err := w.queue.Ack(ctx, msgID); err != nil {
			log.Warn().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}()

	var task Task
	if err := json.Unmarshal(payload, &task); err != nil || task.DocumentID == "" || task.JobID == "" {
		log.Error().Err(err).Str("msg_id", msgID).Msg("malformed task payload, sending to dlq")
		_ = w.queue.AddDLQ(ctx, payload, "malformed payload")
		return
	}

	st := store.New(w.db)
	doc, err := st.GetDocument(task.DocumentID)
	if err != nil {
		log.Error().Err(err).Str("document_id", task.DocumentID).Msg("task references missing document")
		_ = w.queue.AddDLQ(ctx, payload, "document not found")
		return
	}

	fileBytes, err := w.blobs.Read(ctx, doc.FileKey)
	if err != nil {
		code, detail := pipeline.Classify(err)
		if job, jerr := st.GetJob(task.JobID); jerr == nil {
			_ = st.MarkJobFailed(job, code, detail)
			_ = st.SetDocumentStatus(doc, models.DocumentFailed)
		}
		metrics.IncJob(code)
		log.Error().Err(err).Str("file_key", doc.FileKey).Msg("source blob read failed")
		return
	}

	runCtx := ctx
	if w.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.TaskTimeout)
		defer cancel()
	}

	log.Info().
		Str("consumer", consumer).
		Str("document_id", task.DocumentID).
		Str("job_id", task.JobID).
		Msg("processing generation task")
	if err := w.pipe.Run(runCtx, w.db, task.DocumentID, task.JobID, fileBytes); err != nil {
		// Run already persisted the failure; nothing to retry here.
		return
	}
}

func (w *Worker) reportDepths() {
	defer w.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			depth, dlq, err := w.queue.Depths(ctx)
			cancel()
			if err != nil {
				continue
			}
			metrics.SetQueueDepth("stream", depth)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}
