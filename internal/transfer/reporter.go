package transfer

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"uplink/internal/progress"
)

// Reporter renders task events as text lines through an injected sink and
// keeps the batch progress tracker current. It observes outcomes only and
// never influences them; a nil sink silently drops the lines.
type Reporter struct {
	sink    func(string)
	tracker *progress.Tracker
	logger  *zap.Logger
}

func newReporter(sink func(string), logger *zap.Logger) *Reporter {
	return &Reporter{
		sink:    sink,
		tracker: progress.NewTracker(),
		logger:  logger,
	}
}

func (r *Reporter) emit(line string) {
	if r.sink != nil {
		r.sink(line)
	}
}

// BatchStarted announces the expanded batch.
func (r *Reporter) BatchStarted(files int, bytes int64) {
	r.tracker.SetTotal(int64(files), bytes)
	r.emit(fmt.Sprintf("uploading %d files (%s)", files, progress.FormatBytes(bytes)))
}

// TaskStarted marks the beginning of one attempt.
func (r *Reporter) TaskStarted(task *Task) {
	r.logger.Debug("upload started",
		zap.String("key", task.Key),
		zap.Int64("size", task.Size),
		zap.Int("attempt", task.Attempt),
	)
}

// TaskSucceeded reports one finished file with its size and elapsed time.
func (r *Reporter) TaskSucceeded(task *Task, elapsed time.Duration) {
	r.tracker.AddSuccess(task.Size)
	st := r.tracker.GetStatus()
	r.emit(fmt.Sprintf("uploaded %s (%s) in %s [%d/%d, %.0f%%]",
		task.RelPath,
		progress.FormatBytes(task.Size),
		elapsed.Round(time.Millisecond),
		st.ProcessedFiles,
		st.TotalFiles,
		r.tracker.Percent(),
	))
}

// RetryScheduled reports a failed attempt and the delay before the next.
func (r *Reporter) RetryScheduled(task *Task, delay time.Duration, cause error) {
	r.tracker.AddRetry()
	r.emit(fmt.Sprintf("retrying %s in %s (attempt %d): %v",
		task.RelPath, delay, task.Attempt, cause))
}

// TaskFailed reports a file that failed its final attempt.
func (r *Reporter) TaskFailed(task *Task) {
	r.tracker.AddFailed()
	r.emit(fmt.Sprintf("giving up on %s after %d attempts", task.RelPath, task.Attempt))
}

// BatchFinished renders the one-line batch summary.
func (r *Reporter) BatchFinished(outcome Outcome, completed, total int, bytes int64, elapsed time.Duration) {
	switch outcome {
	case OutcomeEmpty:
		r.emit("nothing to upload")
	case OutcomeSucceeded:
		st := r.tracker.GetStatus()
		noun := "files"
		if completed == 1 {
			noun = "file"
		}
		r.emit(fmt.Sprintf("batch complete: %d %s (%s) in %s, %s avg",
			completed,
			noun,
			progress.FormatBytes(bytes),
			progress.FormatDuration(elapsed),
			progress.FormatSpeed(st.AverageSpeed),
		))
	case OutcomeAborted:
		r.emit(fmt.Sprintf("batch aborted: %d/%d files uploaded", completed, total))
	}
}

// StartPeriodic emits a status line at every interval until the returned
// stop function is called. Long batches stay visible between per-file
// lines this way. Stop blocks until the loop has exited, so no line can
// land after the batch summary or the completion callback.
func (r *Reporter) StartPeriodic(interval time.Duration) (stop func()) {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				st := r.tracker.GetStatus()
				if st.TotalFiles == 0 {
					continue
				}
				r.emit(fmt.Sprintf("progress: %d/%d files (%.0f%%), %s/%s, %s, eta %s",
					st.ProcessedFiles,
					st.TotalFiles,
					r.tracker.Percent(),
					progress.FormatBytes(st.ProcessedBytes),
					progress.FormatBytes(st.TotalBytes),
					progress.FormatSpeed(st.CurrentSpeed),
					progress.FormatDuration(st.ETA),
				))
			case <-stopCh:
				return
			}
		}
	}()
	return func() {
		close(stopCh)
		<-doneCh
	}
}
