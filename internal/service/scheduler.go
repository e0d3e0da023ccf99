package service

import (
	"context"
	"time"

	"github.com/banpacifico/core-api/internal/logging"
)

const scheduledBatchSize = 50

// Scheduler polls for scheduled transactions whose date has arrived and
// settles them. Multiple instances can run; row locks with SKIP LOCKED make
// them share the queue instead of double-executing.
type Scheduler struct {
	transfers *TransferService
	interval  time.Duration
}

func NewScheduler(transfers *TransferService, interval time.Duration) *Scheduler {
	return &Scheduler{transfers: transfers, interval: interval}
}

// Run blocks until ctx is cancelled, draining due work every tick.
func (s *Scheduler) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	log := logging.FromContext(ctx)

	// Drain everything due, one batch at a time, so a backlog clears in a
	// single tick instead of one batch per interval.
	for {
		n, err := s.transfers.RunDueScheduled(ctx, scheduledBatchSize)
		if err != nil {
			log.Error("scheduled settlement batch failed", "error", err)
			return
		}
		if n > 0 {
			log.Info("scheduled transactions settled", "count", n)
		}
		if n < scheduledBatchSize {
			return
		}
	}
}
