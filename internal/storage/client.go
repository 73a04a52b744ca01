package storage

import (
	"context"
	"io"
)

// Client defines the interface to the destination object store. The bucket
// is fixed at construction; callers address objects by key only.
type Client interface {
	// BucketExists probes the configured bucket once, typically at startup.
	BucketExists(ctx context.Context) (bool, error)

	// PutObject streams one object to the bucket. When opts.Resumable is
	// set the object is sent through the store's multipart mode in
	// opts.ChunkSize parts; otherwise it is a single atomic put.
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
}

// PutOptions contains options for put operations
type PutOptions struct {
	ContentType    string
	Resumable      bool
	ChunkSize      int64
	SendContentMD5 bool
	Metadata       map[string]string
}

// Config contains client configuration
type Config struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Secure          bool
	Bucket          string
	CredentialsFile string
}
