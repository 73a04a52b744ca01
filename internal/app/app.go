package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"uplink/internal/config"
	"uplink/internal/journal"
	"uplink/internal/metrics"
	"uplink/internal/progress"
	"uplink/internal/storage"
	"uplink/internal/transfer"
)

// Uploader is the assembled application: one storage client, one transfer
// service, and the journal and metrics plumbing around them.
type Uploader struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   storage.Client
	journal journal.Store
	metrics *metrics.Collector
	svc     *transfer.Service
}

// New creates an uploader instance from configuration
func New(cfg *config.Config, logger *zap.Logger) (*Uploader, error) {
	store, err := storage.NewMinIOClient(storage.Config{
		Endpoint:        cfg.Store.Endpoint,
		AccessKey:       cfg.Store.AccessKey,
		SecretKey:       cfg.Store.SecretKey,
		Secure:          cfg.Store.Secure,
		Bucket:          cfg.Store.Bucket,
		CredentialsFile: cfg.Store.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	var history journal.Store
	if !cfg.Journal.Disable {
		history, err = journal.NewSQLiteStore(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
	}

	return newUploader(cfg, logger, store, nil, history), nil
}

// newUploader wires the service from already-built collaborators. A nil
// filesystem falls through to the OS filesystem inside the service.
func newUploader(cfg *config.Config, logger *zap.Logger, store storage.Client, fsys afero.Fs, history journal.Store) *Uploader {
	collector := metrics.New()

	svc := transfer.New(store, fsys, transfer.Settings{
		Parallelism:        cfg.Transfer.Parallelism,
		MaxRetries:         cfg.Transfer.MaxRetries,
		ResumableThreshold: cfg.Transfer.ResumableThreshold,
		ChunkSize:          cfg.Transfer.ChunkSize,
		RetryBackoff:       time.Duration(cfg.Transfer.RetryBackoffMs) * time.Millisecond,
		SendContentMD5:     cfg.Transfer.SendContentMD5,
		KeyPrefix:          cfg.Store.KeyPrefix,
		ProjectID:          cfg.Store.ProjectID,
		StatusInterval:     time.Duration(cfg.Transfer.StatusIntervalSecs) * time.Second,
	}, logger, collector, history)

	return &Uploader{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		journal: history,
		metrics: collector,
		svc:     svc,
	}
}

// Run uploads the given paths, falling back to the configured path list
// when none are passed on the command line.
func (u *Uploader) Run(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		paths = u.cfg.Source.Paths
	}

	u.logger.Info("starting upload",
		zap.String("endpoint", u.cfg.Store.Endpoint),
		zap.String("bucket", u.cfg.Store.Bucket),
		zap.String("root", u.cfg.Source.Root),
		zap.Strings("paths", paths),
		zap.Int("parallelism", u.cfg.Transfer.Parallelism),
		zap.Bool("dry_run", u.cfg.Source.DryRun),
	)

	if u.cfg.MetricsAddr != "" {
		go func() {
			if err := u.metrics.StartServer(u.cfg.MetricsAddr); err != nil {
				u.logger.Error("failed to start metrics server", zap.Error(err))
			}
		}()
	}

	if err := u.svc.Initialize(ctx); err != nil {
		return err
	}

	if u.cfg.Source.DryRun {
		return u.dryRun(paths)
	}

	var uploadErr error
	u.svc.UploadPaths(ctx, u.cfg.Source.Root, u.cfg.Source.DestinationPrefix, paths,
		func(err error) { uploadErr = err },
		func(line string) { fmt.Println(line) },
	)
	if uploadErr != nil {
		return uploadErr
	}

	if u.cfg.Source.RemoveAfterUpload {
		u.svc.CleanupLocalPaths(ctx, u.cfg.Source.Root, paths,
			nil,
			func(line string) { fmt.Println(line) },
		)
	}
	return nil
}

// dryRun expands the paths and reports what an upload would send.
func (u *Uploader) dryRun(paths []string) error {
	tasks, err := u.svc.Plan(u.cfg.Source.Root, u.cfg.Source.DestinationPrefix, paths)
	if err != nil {
		return err
	}

	var totalBytes int64
	for _, t := range tasks {
		totalBytes += t.Size
		u.logger.Info("would upload",
			zap.String("path", t.SourcePath),
			zap.String("key", t.Key),
			zap.Int64("size", t.Size),
		)
	}
	fmt.Printf("dry run: %d files (%s)\n", len(tasks), progress.FormatBytes(totalBytes))
	return nil
}

// Close releases held resources
func (u *Uploader) Close() error {
	if u.journal != nil {
		return u.journal.Close()
	}
	return nil
}
