package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient implements the Client interface using minio-go
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a new MinIO client bound to one bucket
func NewMinIOClient(cfg Config) (*MinIOClient, error) {
	// Clean and validate endpoint
	endpoint, err := cleanEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	creds := credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	if cfg.CredentialsFile != "" {
		creds = credentials.NewFileAWSCredentials(cfg.CredentialsFile, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

// cleanEndpoint removes protocol and path from endpoint URL to get host:port format
func cleanEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	// If endpoint doesn't have protocol, add http:// for parsing
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		// Check if it's already in host:port format
		if strings.Contains(endpoint, "/") {
			return "", fmt.Errorf("endpoint contains path but no protocol")
		}
		return endpoint, nil
	}

	// Parse URL to extract host and port
	parsedURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint URL: %w", err)
	}

	// Check if path is not empty (indicating a full URL with path)
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return "", fmt.Errorf("endpoint URL cannot have paths, only host:port is allowed (got path: %s)", parsedURL.Path)
	}

	// Return host:port format
	return parsedURL.Host, nil
}

// BucketExists checks whether the configured bucket is reachable
func (c *MinIOClient) BucketExists(ctx context.Context) (bool, error) {
	return c.client.BucketExists(ctx, c.bucket)
}

// PutObject uploads an object, choosing between a single atomic put and a
// resumable multipart upload based on opts
func (c *MinIOClient) PutObject(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	if opts.Resumable {
		return c.putMultipart(ctx, key, reader, size, opts)
	}

	putOpts := minio.PutObjectOptions{
		ContentType:      opts.ContentType,
		UserMetadata:     opts.Metadata,
		SendContentMd5:   opts.SendContentMD5,
		DisableMultipart: true,
	}

	_, err := c.client.PutObject(ctx, c.bucket, key, reader, size, putOpts)
	return err
}

// putMultipart drives an explicit multipart upload through the core API so
// the remote store keeps per-part progress. Incomplete uploads are aborted.
func (c *MinIOClient) putMultipart(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	core := &minio.Core{Client: c.client}

	putOpts := minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	}

	uploadID, err := core.NewMultipartUpload(ctx, c.bucket, key, putOpts)
	if err != nil {
		return fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = minPartSize
	}

	partCount := int(math.Ceil(float64(size) / float64(chunkSize)))
	parts := make([]minio.CompletePart, 0, partCount)

	for partNum := 1; partNum <= partCount; partNum++ {
		partSize := chunkSize
		if int64(partNum-1)*chunkSize+partSize > size {
			partSize = size - int64(partNum-1)*chunkSize
		}

		// Read one part into a bounded buffer
		partData := make([]byte, partSize)
		n, err := io.ReadFull(reader, partData)
		if err != nil && err != io.ErrUnexpectedEOF {
			c.abortMultipart(ctx, core, key, uploadID)
			return fmt.Errorf("failed to read part %d: %w", partNum, err)
		}
		partData = partData[:n]

		partOpts := minio.PutObjectPartOptions{}
		if opts.SendContentMD5 {
			sum := md5.Sum(partData)
			partOpts.Md5Base64 = base64.StdEncoding.EncodeToString(sum[:])
		}

		part, err := core.PutObjectPart(ctx, c.bucket, key, uploadID, partNum,
			bytes.NewReader(partData), int64(len(partData)), partOpts)
		if err != nil {
			c.abortMultipart(ctx, core, key, uploadID)
			return fmt.Errorf("failed to upload part %d: %w", partNum, err)
		}

		parts = append(parts, minio.CompletePart{
			PartNumber: partNum,
			ETag:       part.ETag,
		})
	}

	if _, err := core.CompleteMultipartUpload(ctx, c.bucket, key, uploadID, parts, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	return nil
}

func (c *MinIOClient) abortMultipart(ctx context.Context, core *minio.Core, key, uploadID string) {
	// Abort failures leave an orphaned upload for the store's lifecycle
	// rules to reap; nothing more to do here.
	_ = core.AbortMultipartUpload(ctx, c.bucket, key, uploadID)
}

// minPartSize is the S3 minimum for all but the last part of a multipart
// upload.
const minPartSize = 5 * 1024 * 1024
