package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
	"github.com/saas-onboarding/backend/pkg/dynamo"
	"github.com/saas-onboarding/backend/pkg/email"
	"github.com/saas-onboarding/backend/pkg/queue"
)

type fakeSource struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	cancel  context.CancelFunc
}

func (f *fakeSource) Dequeue(ctx context.Context) (*queue.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeSource) Retry(_ context.Context, job *queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, job)
	return nil
}

func emailJob(t *testing.T, id string, p queue.EmailPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return &queue.Job{ID: id, Type: queue.JobTypeEmail, Payload: raw}
}

func TestEmailProcessor_Process(t *testing.T) {
	rec := email.NewRecorder()
	p := NewEmailProcessor(rec, &fakeSource{}, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, emailJob(t, "j1", queue.EmailPayload{To: []string{"a@acme.io"}, Subject: "S", Body: "B"})))
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, email.Message{To: []string{"a@acme.io"}, Subject: "S", Body: "B"}, last)

	assert.Error(t, p.Process(ctx, &queue.Job{ID: "j2", Type: "sms"}))
	assert.Error(t, p.Process(ctx, emailJob(t, "j3", queue.EmailPayload{Subject: "nobody"})))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "j4", Type: queue.JobTypeEmail, Payload: []byte("{")}))
}

func TestEmailProcessor_RunRetriesFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := email.NewRecorder()
	rec.FailWith(errors.New("ses down"))
	src := &fakeSource{cancel: cancel, jobs: []*queue.Job{
		emailJob(t, "j1", queue.EmailPayload{To: []string{"a@acme.io"}}),
	}}
	p := NewEmailProcessor(rec, src, zaptest.NewLogger(t))
	p.backoff = time.Millisecond

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	require.Len(t, src.retried, 1)
	assert.Equal(t, "j1", src.retried[0].ID)
	assert.Empty(t, rec.Sent())
}

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(dynamo.NewMemoryTable())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	put := func(id string, status models.InvitationStatus, expires time.Time) {
		require.NoError(t, repos.Invitations.Put(ctx, &models.Invitation{
			ID: id, TenantID: "t1", Invitee: id + "@acme.io", Status: status, ExpiresAt: expires,
		}))
	}
	put("stale", models.InvitationSent, now.Add(-time.Hour))
	put("older", models.InvitationSent, now.Add(-48*time.Hour))
	put("fresh", models.InvitationSent, now.Add(time.Hour))
	put("done", models.InvitationAccepted, now.Add(-time.Hour))

	s := NewSweeper(repos.Invitations, time.Minute, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status := func(id string) models.InvitationStatus {
		inv, err := repos.Invitations.GetByID(ctx, id)
		require.NoError(t, err)
		return inv.Status
	}
	assert.Equal(t, models.InvitationExpired, status("stale"))
	assert.Equal(t, models.InvitationExpired, status("older"))
	assert.Equal(t, models.InvitationSent, status("fresh"))
	assert.Equal(t, models.InvitationAccepted, status("done"))

	n, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// laggingIndex serves one listing captured earlier, like an index that has not caught up.
type laggingIndex struct {
	*repository.InvitationRepository
	listed []models.Invitation
}

func (l *laggingIndex) ListExpiredSent(_ context.Context, _ time.Time, _ int32) ([]models.Invitation, error) {
	out := l.listed
	l.listed = nil
	return out, nil
}

func TestSweeper_SkipsInvitationsChangedSinceListing(t *testing.T) {
	ctx := context.Background()
	repos := repository.New(dynamo.NewMemoryTable())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"accepted", "deleted", "stale"} {
		require.NoError(t, repos.Invitations.Put(ctx, &models.Invitation{
			ID: id, TenantID: "t1", Invitee: id + "@acme.io", Status: models.InvitationSent, ExpiresAt: now.Add(-time.Minute),
		}))
	}
	listed, err := repos.Invitations.ListExpiredSent(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)

	require.NoError(t, repos.Invitations.UpdateStatus(ctx, "accepted", models.InvitationSent, models.InvitationAccepted))
	gone, err := repos.Invitations.GetByID(ctx, "deleted")
	require.NoError(t, err)
	require.NoError(t, repos.Invitations.Delete(ctx, gone))

	index := &laggingIndex{InvitationRepository: repos.Invitations, listed: listed}
	s := NewSweeper(index, time.Minute, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })
	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	inv, err := repos.Invitations.GetByID(ctx, "accepted")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	inv, err = repos.Invitations.GetByID(ctx, "deleted")
	require.NoError(t, err)
	assert.Nil(t, inv)
	inv, err = repos.Invitations.GetByID(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, inv.Status)
}
