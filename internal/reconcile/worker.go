package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/pkg/limiter"
	"github.com/podilnyk/monojar/pkg/logger"
)

// Ingester pulls one jar's ledger into the payment register.
type Ingester interface {
	Ingest(ctx context.Context, jarID, token string) (*IngestResult, error)
}

// Worker periodically ingests the configured jars so that order
// confirmation polls hit an up to date register. Statement pulls are
// paced with a rate limiter: the upstream allows one statement request
// per account per minute.
type Worker struct {
	ingester Ingester
	limiter  *limiter.DynamicRateLimiter
	logger   logger.Logger
	config   *config.Config
	wg       *sync.WaitGroup
	done     chan struct{}
	stop     sync.Once
}

func NewWorker(ingester Ingester, config *config.Config, logger logger.Logger) (*Worker, error) {
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	if ingester == nil {
		return nil, errors.New("nil dependency: ingester")
	}

	return &Worker{
		ingester: ingester,
		limiter:  limiter.NewDynamicRateLimiter(config.Monobank.StatementInterval, 1),
		logger:   logger,
		config:   config,
		wg:       &sync.WaitGroup{},
		done:     make(chan struct{}),
	}, nil
}

func (w *Worker) Run() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

func (w *Worker) Stop() {
	w.stop.Do(func() {
		close(w.done)
	})

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		w.wg.Wait()
	}()

	select {
	case <-time.After(w.config.HTTPServer.ShutdownTimeout):
		w.logger.Error("ingest worker stop: shutdown timeout exceeded")
	case <-ready:
		return
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.config.Monobank.IngestInterval)
	defer ticker.Stop()

	// First pull right away, then on every tick.
	w.ingestAll()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.ingestAll()
		}
	}
}

func (w *Worker) ingestAll() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-w.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, jarID := range w.config.Monobank.Jars {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}

		_, err := w.ingester.Ingest(ctx, jarID, w.config.Monobank.Token)
		if err != nil {
			if errors.Is(err, errs.ErrRateLimit) {
				w.logger.With(ctx, "jar", jarID).Info("ledger rate limit hit, backing off")
				w.limiter.Update(w.config.Monobank.StatementInterval*2, 1)
				continue
			}
			w.logger.With(ctx, "jar", jarID).Errorf("ingest: %s", err)
		}
	}
}
