package journal

import (
	"time"
)

// BatchRecord is the persisted outcome of one finished upload batch
type BatchRecord struct {
	ID         string    `json:"id"`
	Root       string    `json:"root"`
	Prefix     string    `json:"prefix"`
	TotalFiles int       `json:"total_files"`
	Uploaded   int       `json:"uploaded"`
	Bytes      int64     `json:"bytes"`
	Outcome    string    `json:"outcome"` // succeeded | aborted | empty
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store defines the interface for batch history persistence. Records are
// written once a batch finishes and read back only by the history command;
// uploads never consult them.
type Store interface {
	SaveBatch(record *BatchRecord) error
	ListRecent(limit int) ([]*BatchRecord, error)
	Close() error
}
