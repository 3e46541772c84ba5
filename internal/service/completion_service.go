package service

import (
	"context"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"

	"go.uber.org/zap"
)

// CompletionService moves a reminder from pending to completed on behalf of
// the patient who owns it. There is no way back to pending.
type CompletionService struct {
	reminders repository.ReminderRepository
	store     *NoteStore
	logger    *zap.Logger
}

func NewCompletionService(reminders repository.ReminderRepository, store *NoteStore, logger *zap.Logger) *CompletionService {
	return &CompletionService{
		reminders: reminders,
		store:     store,
		logger:    logger,
	}
}

func (s *CompletionService) Complete(ctx context.Context, reminderID int64, claimedPatientID string) (*domain.CompletionResult, error) {
	claimedPatientID = strings.TrimSpace(claimedPatientID)
	if reminderID <= 0 {
		return nil, validationError("reminder_id must be positive")
	}
	if claimedPatientID == "" {
		return nil, validationError("patient_id is required")
	}

	reminder, err := s.reminders.FindByID(ctx, reminderID)
	if err != nil {
		return nil, storageError("reminder", err)
	}

	owner, err := s.store.FindStepOwnerPatient(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	if owner != claimedPatientID {
		s.logger.Warn("reminder completion rejected",
			zap.Int64("reminder_id", reminderID),
			zap.String("claimed_patient_id", claimedPatientID),
		)
		return nil, forbidden("reminder belongs to another patient")
	}

	if reminder.Completed {
		return &domain.CompletionResult{OK: true, AlreadyCompleted: true}, nil
	}

	changed, err := s.reminders.MarkCompleted(ctx, reminderID)
	if err != nil {
		return nil, storageError("reminder", err)
	}
	if !changed {
		// Lost a race with another completion of the same reminder.
		return &domain.CompletionResult{OK: true, AlreadyCompleted: true}, nil
	}

	s.logger.Info("reminder completed",
		zap.Int64("reminder_id", reminderID),
		zap.String("patient_id", claimedPatientID),
	)
	return &domain.CompletionResult{OK: true}, nil
}
