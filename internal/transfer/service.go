package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"uplink/internal/journal"
	"uplink/internal/metrics"
	"uplink/internal/storage"
)

// Service uploads local files to object storage in parallel batches.
// One Service is safe for use by multiple goroutines; each UploadPaths
// call runs an independent batch with its own worker pool and progress
// tracking.
type Service struct {
	store    storage.Client
	fs       afero.Fs
	settings Settings
	metrics  *metrics.Collector
	journal  journal.Store
	logger   *zap.Logger
}

// New builds a Service around the given storage client. The filesystem,
// logger, collector and history store may be nil; nil history disables
// batch journaling.
func New(store storage.Client, fsys afero.Fs, settings Settings, logger *zap.Logger, collector *metrics.Collector, history journal.Store) *Service {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.New()
	}
	return &Service{
		store:    store,
		fs:       fsys,
		settings: settings.withDefaults(),
		metrics:  collector,
		journal:  history,
		logger:   logger,
	}
}

// Initialize verifies the target bucket is reachable and exists. It must
// succeed before the first upload; buckets are never created implicitly.
func (s *Service) Initialize(ctx context.Context) error {
	ok, err := s.store.BucketExists(ctx)
	if err != nil {
		return &SetupError{Op: "check bucket", Err: err}
	}
	if !ok {
		return &SetupError{Op: "check bucket", Err: errors.New("bucket does not exist")}
	}
	return nil
}

// Plan expands the requested paths into the tasks an upload would run,
// without transferring anything.
func (s *Service) Plan(root, prefix string, relPaths []string) ([]*Task, error) {
	return ExpandPaths(s.fs, root, combinePrefix(s.settings.KeyPrefix, prefix), relPaths, s.logger)
}

// UploadPaths expands relPaths under root and uploads every regular file
// found, at most Parallelism at a time. Object keys are the slash-joined
// relative paths under the combined key prefix.
//
// The call blocks until the batch settles. onProgress receives one-line
// status updates as files finish; onComplete fires exactly once, after all
// other events, with nil on success or the first fatal error otherwise.
// Either callback may be nil.
func (s *Service) UploadPaths(ctx context.Context, root, prefix string, relPaths []string, onComplete func(error), onProgress func(string)) {
	signal := newCompletionSignal(onComplete)
	started := time.Now()
	reporter := newReporter(onProgress, s.logger)

	tasks, err := s.Plan(root, prefix, relPaths)
	if err != nil {
		serr := &SetupError{Op: "expand paths", Err: err}
		s.logger.Error("batch setup failed", zap.Error(serr))
		s.recordBatch(root, prefix, 0, 0, 0, OutcomeAborted, serr, started)
		signal.fire(serr)
		return
	}

	if len(tasks) == 0 {
		reporter.BatchFinished(OutcomeEmpty, 0, 0, 0, time.Since(started))
		s.metrics.IncBatch(OutcomeEmpty.String())
		s.recordBatch(root, prefix, 0, 0, 0, OutcomeEmpty, nil, started)
		signal.fire(nil)
		return
	}

	var totalBytes int64
	for _, t := range tasks {
		totalBytes += t.Size
	}
	s.logger.Info("batch starting",
		zap.Int("files", len(tasks)),
		zap.Int64("bytes", totalBytes),
		zap.Int("parallelism", s.settings.Parallelism),
	)
	reporter.BatchStarted(len(tasks), totalBytes)
	var stopStatus func()
	if s.settings.StatusInterval > 0 {
		stopStatus = reporter.StartPeriodic(s.settings.StatusInterval)
	}

	b := newBatch(tasks)
	p := &pool{
		settings: s.settings,
		store:    s.store,
		fs:       s.fs,
		reporter: reporter,
		metrics:  s.metrics,
		logger:   s.logger,
	}
	p.run(ctx, b)

	if stopStatus != nil {
		stopStatus()
	}

	outcome, batchErr := b.result()
	completed, bytes := b.stats()
	reporter.BatchFinished(outcome, completed, len(tasks), bytes, time.Since(started))
	s.metrics.IncBatch(outcome.String())
	s.recordBatch(root, prefix, len(tasks), completed, bytes, outcome, batchErr, started)
	s.logger.Info("batch finished",
		zap.String("outcome", outcome.String()),
		zap.Int("uploaded", completed),
		zap.Int64("bytes", bytes),
		zap.Duration("elapsed", time.Since(started)),
	)
	signal.fire(batchErr)
}

func (s *Service) recordBatch(root, prefix string, total, uploaded int, bytes int64, outcome Outcome, batchErr error, started time.Time) {
	if s.journal == nil {
		return
	}
	rec := &journal.BatchRecord{
		ID:         uuid.NewString(),
		Root:       root,
		Prefix:     prefix,
		TotalFiles: total,
		Uploaded:   uploaded,
		Bytes:      bytes,
		Outcome:    outcome.String(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if batchErr != nil {
		rec.Error = batchErr.Error()
	}
	if err := s.journal.SaveBatch(rec); err != nil {
		s.logger.Warn("journal write failed", zap.Error(err))
	}
}
