package transfer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"uplink/internal/metrics"
	"uplink/internal/storage"
)

// processor executes single upload attempts and settles their aftermath.
type processor struct {
	settings Settings
	store    storage.Client
	fs       afero.Fs
	reporter *Reporter
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// process runs one attempt of one task: terminal success, a scheduled
// retry, or batch abort once no attempts remain.
func (p *processor) process(ctx context.Context, task *Task, b *batch) {
	start := time.Now()

	p.metrics.IncInflight()
	p.reporter.TaskStarted(task)

	err := p.upload(ctx, task)

	p.metrics.DecInflight()

	if err == nil {
		elapsed := time.Since(start)
		b.taskDone(task, true)
		p.metrics.IncUploaded(task.Size)
		p.metrics.ObserveDuration(elapsed)
		p.reporter.TaskSucceeded(task, elapsed)
		p.logger.Debug("upload completed",
			zap.String("key", task.Key),
			zap.Int64("size", task.Size),
			zap.Duration("duration", elapsed),
		)
		return
	}

	p.settle(task, b, err)
}

// settle applies the retry policy to a failed attempt. Every failure is
// retryable until MaxRetries is spent; the final failure aborts the whole
// batch.
func (p *processor) settle(task *Task, b *batch, cause error) {
	if task.Attempt < p.settings.MaxRetries {
		attemptErr := &TransferError{Key: task.Key, Attempt: task.Attempt + 1, Err: cause}
		task.Attempt++
		delay := p.backoff(task.Attempt)
		p.logger.Warn("upload attempt failed, retry scheduled",
			zap.String("key", task.Key),
			zap.Int("attempt", task.Attempt),
			zap.Duration("delay", delay),
			zap.Error(attemptErr),
		)
		p.metrics.IncRetried()
		p.reporter.RetryScheduled(task, delay, cause)
		b.scheduleRetry(task, delay)
		return
	}

	fatal := &ExhaustedRetriesError{
		Key:      task.Key,
		RelPath:  task.RelPath,
		Attempts: task.Attempt,
		LastErr:  cause,
	}
	p.logger.Error("upload failed permanently",
		zap.String("key", task.Key),
		zap.Int("attempts", task.Attempt),
		zap.Error(cause),
	)
	p.metrics.IncFailed()
	p.reporter.TaskFailed(task)
	b.abort(fatal)
	b.taskDone(task, false)
}

// upload streams one attempt of the task to the store. Files at or above
// the resumable threshold go through the store's multipart mode so a large
// transfer survives mid-stream faults without re-sending acknowledged
// chunks.
func (p *processor) upload(ctx context.Context, task *Task) error {
	f, err := p.fs.Open(task.SourcePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.SourcePath, err)
	}
	defer f.Close()

	opts := storage.PutOptions{
		ContentType:    contentTypeFor(p.settings.ContentTypes, task.Key),
		Resumable:      task.Size >= p.settings.ResumableThreshold,
		ChunkSize:      p.settings.ChunkSize,
		SendContentMD5: p.settings.SendContentMD5,
	}
	if p.settings.ProjectID != "" {
		opts.Metadata = map[string]string{"project-id": p.settings.ProjectID}
	}

	if err := p.store.PutObject(ctx, task.Key, f, task.Size, opts); err != nil {
		return fmt.Errorf("put %s: %w", task.Key, err)
	}
	return nil
}

// backoff returns the delay before the given attempt re-enters the queue:
// the base doubled per attempt, 2s/4s/8s/16s/32s with the 1s default.
func (p *processor) backoff(attempt int) time.Duration {
	return p.settings.RetryBackoff * time.Duration(math.Pow(2, float64(attempt)))
}
