package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saas-onboarding/backend/internal/invitations"
	"github.com/saas-onboarding/backend/internal/models"
	"github.com/saas-onboarding/backend/internal/repository"
)

const sweepBatch = 100

// InvitationStore is what the sweeper needs from the invitation repository.
type InvitationStore interface {
	ListExpiredSent(ctx context.Context, now time.Time, limit int32) ([]models.Invitation, error)
	UpdateStatus(ctx context.Context, id string, from, to models.InvitationStatus) error
}

// Sweeper marks sent invitations past their expiry as expired, so a stale invitation
// reads as expired even if nobody tries to accept it.
type Sweeper struct {
	store    InvitationStore
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweeper creates an invitation expiry sweeper.
func NewSweeper(store InvitationStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, now: time.Now, logger: logger}
}

// WithClock overrides the sweeper's time source.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep expires one pass worth of invitations and returns how many changed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	expired := 0
	for {
		batch, err := s.store.ListExpiredSent(ctx, now, sweepBatch)
		if err != nil {
			return expired, err
		}
		changed := 0
		for i := range batch {
			inv := &batch[i]
			if invitations.Evaluate(now, inv) != invitations.Expired {
				continue
			}
			err := s.store.UpdateStatus(ctx, inv.ID, models.InvitationSent, models.InvitationExpired)
			if errors.Is(err, repository.ErrInvitationChanged) {
				s.logger.Debug("invitation changed before sweep", zap.String("invitation_id", inv.ID))
				continue
			}
			if err != nil {
				return expired, err
			}
			changed++
		}
		expired += changed
		if len(batch) < sweepBatch || changed == 0 {
			return expired, nil
		}
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("invitation sweeper stopping")
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("invitation sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("invitations expired", zap.Int("count", n))
			}
		}
	}
}
