package services

import (
	"context"
	"time"

	"github.com/engagekit/vaultd/internal/repository"
	"go.uber.org/zap"
)

// Sweeper periodically reclaims rows nothing will read again: secrets
// whose soft expiry passed longer ago than the retention window, and
// webhook events past their own retention. Soft expiry itself stays a
// read-time check; the sweeper only does the eventual cleanup.
type Sweeper struct {
	secrets         *repository.SecretRepository
	events          *repository.WebhookEventRepository
	interval        time.Duration
	secretRetention time.Duration
	eventRetention  time.Duration
	logger          *zap.Logger
}

func NewSweeper(secrets *repository.SecretRepository, events *repository.WebhookEventRepository, interval, secretRetention, eventRetention time.Duration, logger *zap.Logger) *Sweeper {
	// A non-positive interval would panic the ticker in Run.
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		secrets:         secrets,
		events:          events,
		interval:        interval,
		secretRetention: secretRetention,
		eventRetention:  eventRetention,
		logger:          logger,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) error {
	secretCutoff := time.Now().Add(-s.secretRetention)
	eventCutoff := time.Now().Add(-s.eventRetention)

	purged, err := s.secrets.PurgeExpiredBefore(ctx, secretCutoff)
	if err != nil {
		return err
	}

	deleted, err := s.events.DeleteOlderThan(ctx, eventCutoff)
	if err != nil {
		return err
	}

	if purged > 0 || deleted > 0 {
		s.logger.Info("Sweep completed",
			zap.Int64("secrets_purged", purged),
			zap.Int64("events_deleted", deleted))
	}
	return nil
}
