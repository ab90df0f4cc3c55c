// Package logger wires the global zerolog logger: rotated file output,
// console (pretty in dev), and optional batched forwarding to Axiom.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/local/slidenode/internal/config"
)

const serviceName = "slidenode"

var fwd *forwarder

// Init configures the global logger from config. Axiom forwarding is
// skipped when disabled or unconfigured; a forwarding setup failure
// never blocks startup.
func Init(cfg config.LoggingConfig, ax config.AxiomConfig) error {
	var writers []io.Writer

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}

	if cfg.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	if ax.Send && ax.APIKey != "" {
		f, err := newForwarder(ax)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom forwarding disabled: %v\n", err)
		} else {
			fwd = f
			writers = append(writers, f)
		}
	}

	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return nil
}

// Close flushes the Axiom forwarder, if any.
func Close() {
	if fwd != nil {
		fwd.stop()
	}
}

// forwarder batches zerolog JSON lines into Axiom ingest calls. Debug
// lines are dropped; events are discarded when the buffer is full.
type forwarder struct {
	client  *axiom.Client
	dataset string
	ch      chan axiom.Event
	cancel  context.CancelFunc
	done    sync.WaitGroup
	ctx     context.Context
}

func newForwarder(cfg config.AxiomConfig) (*forwarder, error) {
	opts := []axiom.Option{axiom.SetToken(cfg.APIKey)}
	if cfg.OrgID != "" {
		opts = append(opts, axiom.SetOrganizationID(cfg.OrgID))
	}
	client, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	flushEvery := cfg.FlushInterval
	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &forwarder{
		client:  client,
		dataset: cfg.Dataset,
		ch:      make(chan axiom.Event, 1000),
		cancel:  cancel,
		ctx:     ctx,
	}
	f.done.Add(1)
	go f.run(flushEvery)
	return f, nil
}

func (f *forwarder) Write(p []byte) (int, error) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if lvl, _ := ev["level"].(string); lvl == "debug" {
		return len(p), nil
	}
	ev["service"] = serviceName
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case f.ch <- axiom.Event(ev):
	default:
	}
	return len(p), nil
}

func (f *forwarder) run(flushEvery time.Duration) {
	defer f.done.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, 200)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = f.client.IngestEvents(ctx, f.dataset, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-f.ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case ev := <-f.ch:
			batch = append(batch, ev)
			if len(batch) >= 200 {
				flush()
			}
		}
	}
}

func (f *forwarder) stop() {
	f.cancel()
	f.done.Wait()
}
