package transfer

import (
	"context"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"uplink/internal/metrics"
	"uplink/internal/storage"
)

// pool runs one batch's tasks with bounded parallelism.
type pool struct {
	settings Settings
	store    storage.Client
	fs       afero.Fs
	reporter *Reporter
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// run starts the workers and blocks until every worker has exited, which
// happens when the queue has drained or the context is cancelled.
func (p *pool) run(ctx context.Context, b *batch) {
	var wg sync.WaitGroup
	for i := 0; i < p.settings.Parallelism; i++ {
		wg.Add(1)
		go p.worker(ctx, i, b, &wg)
	}
	wg.Wait()
}

func (p *pool) worker(ctx context.Context, id int, b *batch, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("worker started")

	proc := &processor{
		settings: p.settings,
		store:    p.store,
		fs:       p.fs,
		reporter: p.reporter,
		metrics:  p.metrics,
		logger:   logger,
	}

	for {
		select {
		case task, ok := <-b.queue:
			if !ok {
				logger.Debug("worker finished, queue drained")
				return
			}
			if b.isAborted() {
				// Batch already failed; drain without dispatching.
				b.taskDone(task, false)
				continue
			}
			proc.process(ctx, task, b)

		case <-ctx.Done():
			logger.Debug("worker stopped, context cancelled")
			b.abort(ctx.Err())
			return
		}
	}
}
