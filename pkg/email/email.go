// Package email delivers transactional messages.
package email

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/pkg/queue"
)

const charset = "UTF-8"

// Message is a plain text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SES sends through Amazon SES.
type SES struct {
	client        SESAPI
	source        string
	configSetName string
	logger        *zap.Logger
}

var _ Sender = (*SES)(nil)

// NewSES creates an SES sender. An empty configSetName sends without a configuration set.
func NewSES(client SESAPI, source, configSetName string, logger *zap.Logger) *SES {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SES{client: client, source: source, configSetName: configSetName, logger: logger}
}

// Send delivers msg.
func (s *SES) Send(ctx context.Context, msg Message) error {
	input := &ses.SendEmailInput{
		Source:      aws.String(s.source),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String(charset), Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Text: &types.Content{Charset: aws.String(charset), Data: aws.String(msg.Body)},
			},
		},
	}
	if s.configSetName != "" {
		input.ConfigurationSetName = aws.String(s.configSetName)
	}
	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send email: %w", err)
	}
	s.logger.Debug("email sent", zap.String("message_id", aws.ToString(out.MessageId)), zap.String("subject", msg.Subject))
	return nil
}

// Enqueuer is implemented by *queue.Queue.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Queued hands messages to the background worker.
type Queued struct {
	queue Enqueuer
}

var _ Sender = (*Queued)(nil)

// NewQueued creates a sender that enqueues.
func NewQueued(q Enqueuer) *Queued {
	return &Queued{queue: q}
}

// Send enqueues msg.
func (s *Queued) Send(ctx context.Context, msg Message) error {
	return s.queue.EnqueueEmail(ctx, queue.EmailPayload{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}

// Recorder keeps messages in memory. Used by tests and local runs.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

var _ Sender = (*Recorder)(nil)

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Send return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Send records msg.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}
