package service

import (
	"context"
	"time"

	"carenote-server/internal/careplan"
	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
)

// ReminderScheduler turns persisted steps into reminders and writes them
// in a single batch.
type ReminderScheduler struct {
	reminders repository.ReminderRepository
}

func NewReminderScheduler(reminders repository.ReminderRepository) *ReminderScheduler {
	return &ReminderScheduler{reminders: reminders}
}

func (s *ReminderScheduler) Schedule(ctx context.Context, steps []*domain.ActionableStep, now time.Time) ([]*domain.Reminder, error) {
	reminders := careplan.PlanReminders(steps, now)
	if err := s.reminders.CreateBatch(ctx, reminders); err != nil {
		return nil, storageError("reminders", err)
	}
	return reminders, nil
}
