package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// FolderTenants is the S3 prefix for tenant snapshots.
const FolderTenants = "tenants"

// Archive keeps a snapshot of a tenant before it is deleted.
type Archive interface {
	ArchiveTenant(ctx context.Context, tenantID string, snapshot any) (string, error)
}

// Uploader is implemented by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 writes snapshots as JSON objects.
type S3 struct {
	uploader Uploader
	bucket   string
	now      func() time.Time
	logger   *zap.Logger
}

var _ Archive = (*S3)(nil)

// NewS3 creates an archive on bucket from a loaded AWS config.
func NewS3(cfg aws.Config, bucket string, logger *zap.Logger) *S3 {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// localstack serves buckets by path
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return NewS3WithUploader(uploader, bucket, logger)
}

// NewS3WithUploader creates an archive with a custom uploader.
func NewS3WithUploader(uploader Uploader, bucket string, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{uploader: uploader, bucket: bucket, now: time.Now, logger: logger}
}

// TenantKey returns the object key: tenants/{tenant_id}/{unix_millis}.json.
func TenantKey(tenantID string, at time.Time) string {
	return path.Join(FolderTenants, tenantID, fmt.Sprintf("%d.json", at.UnixMilli()))
}

// ArchiveTenant uploads snapshot and returns the object key.
func (s *S3) ArchiveTenant(ctx context.Context, tenantID string, snapshot any) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	key := TenantKey(tenantID, s.now())
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String("application/json"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	s.logger.Info("tenant archived", zap.String("tenant_id", tenantID), zap.String("s3_key", key))
	return key, nil
}

// Memory keeps snapshots in process.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ Archive = (*Memory)(nil)

// NewMemory returns an empty archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// ArchiveTenant stores the JSON snapshot under tenants/{tenant_id}.json.
func (m *Memory) ArchiveTenant(_ context.Context, tenantID string, snapshot any) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	key := path.Join(FolderTenants, tenantID+".json")
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return key, nil
}

// Object returns a stored snapshot.
func (m *Memory) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}
