// Package objectstore is the storage gateway over an S3-compatible service.
//
// Only EnsureBuckets returns errors. Every other operation logs failures
// and returns false, nil or an empty value.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// DefaultPresignExpiry is used when PresignedURL is given a zero expiry.
const DefaultPresignExpiry = time.Hour

// Config describes how to reach the object store.
type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	DataBucket   string
	BackupBucket string
	Timeout      time.Duration
}

// ObjectMeta is the head metadata of one object.
type ObjectMeta struct {
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata"`
	ETag         string            `json:"etag"`
}

// ObjectSummary is one entry of a listing.
type ObjectSummary struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

// BucketStats is the aggregate size of a bucket.
type BucketStats struct {
	Bucket         string  `json:"bucket"`
	TotalSizeBytes int64   `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	FileCount      int     `json:"file_count"`
}

// Store wraps a minio client bound to a data bucket and a backup bucket.
type Store struct {
	client       *minio.Client
	dataBucket   string
	backupBucket string
	timeout      time.Duration
	log          *zap.Logger
}

// New builds a client for cfg. It does not contact the server.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.DataBucket == "" {
		return nil, fmt.Errorf("data bucket name missing")
	}

	endpoint, opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Store{
		client:       client,
		dataBucket:   cfg.DataBucket,
		backupBucket: cfg.BackupBucket,
		timeout:      timeout,
		log:          log.Named("objectstore"),
	}, nil
}

// DataBucket is the bucket that holds uploaded documents.
func (s *Store) DataBucket() string { return s.dataBucket }

// BackupBucket is the bucket that holds snapshots.
func (s *Store) BackupBucket() string { return s.backupBucket }

func (s *Store) bucketOr(bucket string) string {
	if bucket == "" {
		return s.dataBucket
	}
	return bucket
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureBuckets creates the data and backup buckets when they are missing.
// A failure here should stop the process.
func (s *Store) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.dataBucket, s.backupBucket} {
		if bucket == "" {
			continue
		}
		cctx, cancel := s.withTimeout(ctx)
		exists, err := s.client.BucketExists(cctx, bucket)
		if err == nil && !exists {
			err = s.client.MakeBucket(cctx, bucket, minio.MakeBucketOptions{})
			if err == nil {
				s.log.Info("bucket created", zap.String("bucket", bucket))
			}
		}
		cancel()
		if err != nil {
			return fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Upload stores data under key. An empty bucket means the data bucket.
func (s *Store) Upload(ctx context.Context, data []byte, key, bucket, contentType string, meta map[string]string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		s.log.Error("upload failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Download reads a whole object. The second result is false when the object
// is missing or unreadable.
func (s *Store) Download(ctx context.Context, key, bucket string) ([]byte, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		s.log.Error("download failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return nil, false
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		s.log.Error("download read failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return data, true
}

// HeadMetadata returns object metadata without reading the body.
func (s *Store) HeadMetadata(ctx context.Context, key, bucket string) (ObjectMeta, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		s.log.Warn("head object failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return ObjectMeta{}, false
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	meta := map[string]string{}
	for k, v := range info.UserMetadata {
		meta[k] = v
	}
	return ObjectMeta{
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: info.LastModified,
		Metadata:     meta,
		ETag:         info.ETag,
	}, true
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, key, bucket string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.log.Error("delete failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// List returns up to maxKeys objects under prefix. maxKeys <= 0 means 1000.
func (s *Store) List(ctx context.Context, prefix, bucket string, maxKeys int) []ObjectSummary {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	out := []ObjectSummary{}
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   maxKeys,
	}) {
		if obj.Err != nil {
			s.log.Error("list failed", zap.String("bucket", bucket), zap.String("prefix", prefix), zap.Error(obj.Err))
			return []ObjectSummary{}
		}
		out = append(out, ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
		if len(out) >= maxKeys {
			break
		}
	}
	return out
}

// PresignedURL returns a time-limited GET URL for key.
func (s *Store) PresignedURL(ctx context.Context, key, bucket string, expiry time.Duration) (string, bool) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		s.log.Error("presign failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		return "", false
	}
	return u.String(), true
}

// BucketExists reports whether bucket exists. Errors count as missing.
func (s *Store) BucketExists(ctx context.Context, bucket string) bool {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		s.log.Warn("bucket exists check failed", zap.String("bucket", bucket), zap.Error(err))
		return false
	}
	return ok
}

// BucketSizeStats walks every object in bucket and sums sizes. The cost is
// linear in the number of objects.
func (s *Store) BucketSizeStats(ctx context.Context, bucket string) BucketStats {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	bucket = s.bucketOr(bucket)
	stats := BucketStats{Bucket: bucket}
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			s.log.Error("bucket size listing failed", zap.String("bucket", bucket), zap.Error(obj.Err))
			return BucketStats{Bucket: bucket}
		}
		stats.TotalSizeBytes += obj.Size
		stats.FileCount++
	}
	stats.TotalSizeMB = bytesToMB(stats.TotalSizeBytes)
	return stats
}

func bytesToMB(n int64) float64 {
	mb := float64(n) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}
