package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &manager.UploadOutput{Key: in.Key}, nil
}

func TestTenantKey(t *testing.T) {
	at := time.UnixMilli(1717243200123)
	assert.Equal(t, "tenants/t1/1717243200123.json", TenantKey("t1", at))
}

func TestS3_ArchiveTenant(t *testing.T) {
	up := &fakeUploader{}
	archive := NewS3WithUploader(up, "archive-bucket", zaptest.NewLogger(t))
	archive.now = func() time.Time { return time.UnixMilli(42) }

	key, err := archive.ArchiveTenant(context.Background(), "t1", map[string]string{"name": "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "tenants/t1/42.json", key)
	assert.Equal(t, "archive-bucket", aws.ToString(up.input.Bucket))
	assert.Equal(t, key, aws.ToString(up.input.Key))
	assert.Equal(t, "application/json", aws.ToString(up.input.ContentType))
	assert.Equal(t, types.ServerSideEncryptionAes256, up.input.ServerSideEncryption)
	assert.JSONEq(t, `{"name":"Acme"}`, string(up.body))

	up.err = errors.New("denied")
	_, err = archive.ArchiveTenant(context.Background(), "t1", nil)
	assert.ErrorContains(t, err, "denied")
}

func TestMemory_ArchiveTenant(t *testing.T) {
	m := NewMemory()
	key, err := m.ArchiveTenant(context.Background(), "t1", map[string]int{"users": 2})
	require.NoError(t, err)
	raw, ok := m.Object(key)
	require.True(t, ok)
	var got map[string]int
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 2, got["users"])
}
