package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestQueue connects to TEST_REDIS_ADDR and skips when it is unset.
func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.Del(ctx, QueueEmails, QueueDLQ).Err())
	t.Cleanup(func() {
		client.Del(context.Background(), QueueEmails, QueueDLQ)
		client.Close()
	})
	return NewQueue(client, zaptest.NewLogger(t)), client
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	payload := EmailPayload{To: []string{"a@acme.io"}, Subject: "S", Body: "B"}
	require.NoError(t, q.EnqueueEmail(ctx, payload))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeEmail, job.Type)
	assert.Zero(t, job.Attempt)

	var got EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestQueue_RetryThenDLQ(t *testing.T) {
	q, client := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{To: []string{"a@acme.io"}}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		job, err = q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, i, job.Attempt)
	}
	require.NoError(t, q.Retry(ctx, job))

	n, err := client.LLen(ctx, QueueEmails).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = client.LLen(ctx, QueueDLQ).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
