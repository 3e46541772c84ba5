package service

import (
	"context"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"
)

type ReminderService struct {
	reminders repository.ReminderRepository
}

func NewReminderService(reminders repository.ReminderRepository) *ReminderService {
	return &ReminderService{reminders: reminders}
}

// List returns a patient's reminders ordered by schedule time.
func (s *ReminderService) List(ctx context.Context, patientID string, page, limit int) (*domain.ReminderPage, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, validationError("patient_id is required")
	}

	page, limit, offset, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}

	items, total, err := s.reminders.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, storageError("reminders", err)
	}

	return &domain.ReminderPage{
		Items:    items,
		Total:    total,
		Page:     page,
		NextPage: nextPage(total, page, limit),
	}, nil
}
