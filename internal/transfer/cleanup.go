package transfer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CleanupLocalPaths removes the given paths from under root, directories
// recursively. Removal is best effort: individual failures are reported
// through onProgress and the log but never abort the sweep, and onComplete
// always receives nil. Callers decide separately whether uploads succeeded
// before asking for cleanup.
func (s *Service) CleanupLocalPaths(ctx context.Context, root string, relPaths []string, onComplete func(error), onProgress func(string)) {
	signal := newCompletionSignal(onComplete)
	emit := func(line string) {
		if onProgress != nil {
			onProgress(line)
		}
	}

	var removed, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.settings.Parallelism)
	for _, rel := range relPaths {
		rel := rel
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			target := filepath.Join(root, filepath.Clean(rel))
			if err := s.fs.RemoveAll(target); err != nil {
				failed.Add(1)
				cerr := &CleanupError{Path: rel, Err: err}
				s.logger.Warn("cleanup failed", zap.String("path", target), zap.Error(cerr))
				emit(fmt.Sprintf("warning: %v", cerr))
				return nil
			}
			removed.Add(1)
			return nil
		})
	}
	g.Wait()

	if failed.Load() > 0 {
		emit(fmt.Sprintf("cleaned up %d paths, %d could not be removed", removed.Load(), failed.Load()))
	} else {
		emit(fmt.Sprintf("cleaned up %d paths", removed.Load()))
	}
	signal.fire(nil)
}
