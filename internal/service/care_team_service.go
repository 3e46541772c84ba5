package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/internal/repository"

	"go.uber.org/zap"
)

type CareTeamService struct {
	links  repository.CareTeamRepository
	users  UserDirectory
	logger *zap.Logger
}

func NewCareTeamService(links repository.CareTeamRepository, users UserDirectory, logger *zap.Logger) *CareTeamService {
	return &CareTeamService{
		links:  links,
		users:  users,
		logger: logger,
	}
}

func (s *CareTeamService) Assign(ctx context.Context, req *domain.AssignDoctorRequest) (*domain.DoctorPatient, error) {
	doctorID := strings.TrimSpace(req.DoctorID)
	patientID := strings.TrimSpace(req.PatientID)

	if doctorID == "" || patientID == "" {
		return nil, validationError("doctor_id and patient_id are required")
	}
	if doctorID == patientID {
		return nil, validationError("a user cannot be assigned to themselves")
	}

	if err := requireRole(ctx, s.users, doctorID, domain.RoleDoctor); err != nil {
		return nil, err
	}
	if err := requireRole(ctx, s.users, patientID, domain.RolePatient); err != nil {
		return nil, err
	}

	link := &domain.DoctorPatient{DoctorID: doctorID, PatientID: patientID}
	if err := s.links.Assign(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: doctor is already assigned to this patient", ErrConflict)
		}
		return nil, storageError("care team", err)
	}

	s.logger.Info("doctor assigned",
		zap.String("doctor_id", doctorID),
		zap.String("patient_id", patientID),
	)
	return link, nil
}

// ListPatients pages through a doctor's patients, newest assignment first.
func (s *CareTeamService) ListPatients(ctx context.Context, doctorID string, page, limit int) (*domain.PatientPage, error) {
	page, limit, offset, err := normalizePage(page, limit)
	if err != nil {
		return nil, err
	}

	links, total, err := s.links.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, storageError("care team", err)
	}

	items := make([]*domain.PatientSummary, 0, len(links))
	for _, link := range links {
		summary := &domain.PatientSummary{ID: link.PatientID, AssignedAt: link.AssignedAt}

		user, err := s.users.FindByID(ctx, link.PatientID)
		switch {
		case err == nil:
			summary.Name = user.Name
			summary.Email = user.Email
		case errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("patient missing from identity store", zap.String("patient_id", link.PatientID))
		default:
			return nil, storageError("patient", err)
		}

		items = append(items, summary)
	}

	return &domain.PatientPage{
		Items:    items,
		Total:    total,
		Page:     page,
		NextPage: nextPage(total, page, limit),
	}, nil
}
