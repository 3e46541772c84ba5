package service

import (
	"context"
	"time"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"

	"go.uber.org/zap"
)

// Notifier pushes a due reminder to its patient's live connections and
// returns how many connections received it.
type Notifier interface {
	NotifyReminderDue(reminder *domain.DueReminder) int
}

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
}

// ReminderDispatcher announces reminders whose schedule time has passed.
// Each reminder is announced at most once; completion state is never touched.
type ReminderDispatcher struct {
	reminders repository.ReminderRepository
	tx        repository.Transactor
	notifier  Notifier
	cfg       DispatcherConfig
	logger    *zap.Logger
	now       func() time.Time
}

func NewReminderDispatcher(
	reminders repository.ReminderRepository,
	tx repository.Transactor,
	notifier Notifier,
	cfg DispatcherConfig,
	logger *zap.Logger,
) *ReminderDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	return &ReminderDispatcher{
		reminders: reminders,
		tx:        tx,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is canceled.
func (d *ReminderDispatcher) Run(ctx context.Context) error {
	d.logger.Info("reminder dispatcher starting",
		zap.Int("batch", d.cfg.BatchSize),
		zap.Duration("interval", d.cfg.Interval),
	)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("reminder dispatcher stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil {
				d.logger.Error("reminder dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchOnce leases one batch of due reminders and stamps them notified in
// one transaction, then pushes them once the stamp has committed. It returns
// the number of reminders leased.
func (d *ReminderDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	var due []*domain.DueReminder

	err := d.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := d.now()
		leased, err := d.reminders.LeaseDue(ctx, now, d.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(leased) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(leased))
		for _, r := range leased {
			ids = append(ids, r.ReminderID)
		}
		if err := d.reminders.MarkNotified(ctx, ids, now); err != nil {
			return err
		}
		due = leased
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	delivered := 0
	for _, r := range due {
		if d.notifier.NotifyReminderDue(r) > 0 {
			delivered++
		}
	}

	d.logger.Info("due reminders dispatched",
		zap.Int("leased", len(due)),
		zap.Int("delivered", delivered),
	)
	return len(due), nil
}
