package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/saas-onboarding/backend/pkg/queue"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, in)
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

func TestSES_Send(t *testing.T) {
	fake := &fakeSES{}
	sender := NewSES(fake, "noreply@acme.io", "onboarding", zaptest.NewLogger(t))

	err := sender.Send(context.Background(), Message{To: []string{"a@acme.io"}, Subject: "Hi", Body: "Hello"})
	require.NoError(t, err)
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "noreply@acme.io", aws.ToString(in.Source))
	assert.Equal(t, "onboarding", aws.ToString(in.ConfigurationSetName))
	assert.Equal(t, []string{"a@acme.io"}, in.Destination.ToAddresses)
	assert.Equal(t, "Hi", aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "Hello", aws.ToString(in.Message.Body.Text.Data))
	assert.Equal(t, "UTF-8", aws.ToString(in.Message.Body.Text.Charset))
}

func TestSES_NoConfigSet(t *testing.T) {
	fake := &fakeSES{}
	require.NoError(t, NewSES(fake, "noreply@acme.io", "", nil).Send(context.Background(), Message{To: []string{"a@acme.io"}}))
	assert.Nil(t, fake.inputs[0].ConfigurationSetName)

	fake.err = errors.New("throttled")
	assert.ErrorContains(t, NewSES(fake, "noreply@acme.io", "", nil).Send(context.Background(), Message{}), "throttled")
}

type fakeEnqueuer struct {
	payloads []queue.EmailPayload
}

func (f *fakeEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func TestQueued_Send(t *testing.T) {
	q := &fakeEnqueuer{}
	msg := Message{To: []string{"a@acme.io", "b@acme.io"}, Subject: "S", Body: "B"}
	require.NoError(t, NewQueued(q).Send(context.Background(), msg))
	assert.Equal(t, []queue.EmailPayload{{To: msg.To, Subject: "S", Body: "B"}}, q.payloads)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	require.NoError(t, r.Send(context.Background(), Message{Subject: "one"}))
	require.NoError(t, r.Send(context.Background(), Message{Subject: "two"}))
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "two", last.Subject)
	assert.Len(t, r.Sent(), 2)

	r.FailWith(errors.New("down"))
	assert.Error(t, r.Send(context.Background(), Message{}))
	assert.Len(t, r.Sent(), 2)
}
