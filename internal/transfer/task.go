package transfer

import "time"

// Task represents one file to upload. The expander creates it, a single
// worker owns it for the duration of one attempt, and ownership returns to
// the shared queue between attempts. Only the retry path mutates Attempt.
type Task struct {
	SourcePath string `json:"source_path"` // absolute local path
	RelPath    string `json:"rel_path"`    // path relative to the batch root, slash-separated
	Key        string `json:"key"`         // destination object key
	Size       int64  `json:"size"`        // size captured at expansion time
	Attempt    int    `json:"attempt"`     // attempts made so far, never above MaxRetries
}

// Settings contains transfer configuration
type Settings struct {
	Parallelism        int
	MaxRetries         int
	ResumableThreshold int64
	ChunkSize          int64
	RetryBackoff       time.Duration
	SendContentMD5     bool
	KeyPrefix          string
	ProjectID          string
	StatusInterval     time.Duration
	ContentTypes       map[string]string
}

const (
	DefaultParallelism        = 16
	DefaultMaxRetries         = 5
	DefaultResumableThreshold = 5 * 1024 * 1024
	DefaultChunkSize          = 8 * 1024 * 1024
	DefaultRetryBackoff       = time.Second
)

// withDefaults fills unset fields so a zero Settings behaves sensibly.
func (s Settings) withDefaults() Settings {
	if s.Parallelism <= 0 {
		s.Parallelism = DefaultParallelism
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	if s.ResumableThreshold <= 0 {
		s.ResumableThreshold = DefaultResumableThreshold
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.RetryBackoff <= 0 {
		s.RetryBackoff = DefaultRetryBackoff
	}
	if s.ContentTypes == nil {
		s.ContentTypes = DefaultContentTypes
	}
	return s
}
