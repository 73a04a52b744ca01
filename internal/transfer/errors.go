package transfer

import "fmt"

// SetupError reports a failure before any transfer started: the bucket is
// unreachable, credentials are bad, or the task list could not be built.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed (%s): %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TransferError reports one failed upload attempt. Attempt failures are
// uniformly retryable until the task runs out of attempts, so this error
// is absorbed by the retry path and never surfaces on its own.
type TransferError struct {
	Key     string
	Attempt int
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s (attempt %d): %v", e.Key, e.Attempt, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// ExhaustedRetriesError is fatal for the batch: one file failed every
// allowed attempt. It names the file and the attempt count and aborts all
// remaining queued work.
type ExhaustedRetriesError struct {
	Key      string
	RelPath  string
	Attempts int
	LastErr  error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("upload of %s failed after %d attempts: %v", e.RelPath, e.Attempts, e.LastErr)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.LastErr }

// CleanupError reports a failed local deletion. Cleanup is best-effort:
// these are logged as warnings and never returned to the caller.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
